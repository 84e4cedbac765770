package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	pkgerrors "sentinella/pkg/errors"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
}

// Do runs fn with exponential backoff until it succeeds, the attempt budget
// runs out, or the context is cancelled. Errors implementing
// pkgerrors.RetryableError with IsRetryable() == false stop retries at once;
// everything else is treated as transient.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = policy.Multiplier
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.MaxAttempts-1)), ctx)

	operation := func() error {
		err := fn()
		if err == nil {
			return nil
		}

		var retryableErr pkgerrors.RetryableError
		if errors.As(err, &retryableErr) && !retryableErr.IsRetryable() {
			return backoff.Permanent(err)
		}

		return err
	}

	return backoff.Retry(operation, b)
}
