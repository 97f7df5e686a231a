package apic

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// RetryPolicy bounds the number of attempts of an operation and
// determines the delay between them.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     wait.Backoff
}

// DefaultRetryPolicy retries up to three times, starting with a 1s delay
// that doubles on every attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: wait.Backoff{
			Duration: time.Second,
			Factor:   2,
			Jitter:   0.2,
			Steps:    3,
		},
	}
}

// Do calls fn until it succeeds, fails with retry == false, or the policy's
// attempts are exhausted. attempt starts at 1.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) (retry bool, err error)) error {
	attempts := max(p.MaxAttempts, 1)
	backoff := p.Backoff // Step mutates the backoff.
	var err error
	for attempt := 1; ; attempt++ {
		var retry bool
		retry, err = fn(ctx, attempt)
		if err == nil || !retry {
			return err
		}
		if attempt >= attempts {
			break
		}
		timer := time.NewTimer(backoff.Step())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
