package iteration

import (
	"context"
	"time"

	"github.com/viztrtr/viztrtr-core/internal/logging"
)

// maxModelRetries bounds retries of a transient model-provider error to
// 3 attempts total, matching spec.md section 4.13's "bounded exponential
// backoff (e.g., 3 attempts)".
const maxModelRetries = 3

const backoffBase = 2 * time.Second
const backoffMax = 30 * time.Second

// withBackoff retries fn up to maxModelRetries times with exponential
// backoff (base * 2^(attempt-1), capped at backoffMax) between attempts,
// grounded on the teacher's computeRetryBackoff shape in
// internal/campaign/orchestrator_failure.go. It returns fn's last error
// if every attempt fails, or nil on the first success; if ctx is done
// while waiting between attempts it returns ctx.Err() instead.
func withBackoff(ctx context.Context, label string, fn func() error) error {
	log := logging.Get(logging.CategoryIteration)

	var err error
	for attempt := 1; attempt <= maxModelRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == maxModelRetries {
			break
		}

		wait := backoffBase * time.Duration(uint(1)<<uint(attempt-1))
		if wait > backoffMax {
			wait = backoffMax
		}
		log.Warn("%s: attempt %d/%d failed: %v, retrying in %v", label, attempt, maxModelRetries, err, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
