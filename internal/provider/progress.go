package provider

import (
	"time"

	"go.uber.org/zap"
)

// progress logs the phases of a run.
type progress struct {
	log     *zap.SugaredLogger
	started time.Time
	read    time.Time
	now     func() time.Time
}

func newProgress(log *zap.SugaredLogger, now func() time.Time) *progress {
	return &progress{log: log, started: now(), now: now}
}

func (p *progress) doneReading(entities int) {
	p.read = p.now()
	p.log.Infof("Read %d entities in %.1fs. Committing...", entities, p.read.Sub(p.started).Seconds())
}

func (p *progress) doneCommitting() {
	p.log.Infof("Committed in %.1fs.", p.now().Sub(p.read).Seconds())
}

func (p *progress) elapsed() time.Duration {
	return p.now().Sub(p.started)
}
