package sink

import (
	"context"

	"github.com/dnswlt/apicsync/internal/api"
	"go.uber.org/zap"
)

// LogSink logs mutations instead of persisting them.
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) ApplyMutation(ctx context.Context, m *Mutation) error {
	upserts := m.Upserts()
	s.log.Infow("Applying mutation", "type", m.Type.String(), "entities", len(upserts), "removed", len(m.Removed))
	for _, d := range upserts {
		s.log.Debugw("Upsert", "ref", d.Entity.GetRef(), "resource", api.ResourceType(d.Entity),
			"source", api.SourceURL(d.Entity), "location", d.LocationKey)
	}
	for _, r := range m.Removed {
		s.log.Debugw("Remove", "ref", r)
	}
	return nil
}
