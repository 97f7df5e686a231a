package provider

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// scheduleJitter spreads the runs of providers with the same schedule.
const scheduleJitter = 0.1

// RunEvery calls Read immediately and then every interval until ctx is done.
// The interval is measured from the end of the previous run. Failed runs
// are logged by Read and do not stop the schedule.
func (p *Provider) RunEvery(ctx context.Context, interval time.Duration) {
	p.log.Infow("Starting scheduled ingestion", "provider", p.id, "interval", interval)
	wait.JitterUntilWithContext(ctx, func(ctx context.Context) {
		_ = p.Read(ctx)
	}, interval, scheduleJitter, true)
	p.log.Infow("Stopped scheduled ingestion", "provider", p.id)
}
