package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/w-h-a/doctalk/errs"
)

// Policy bounds how often and how fast a provider call is retried.
// Attempts counts the first call, so 1 means no retries.
type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Do runs fn until it succeeds, returns a non-transient error, the attempts
// run out, or ctx is done.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		exp.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		exp.MaxInterval = policy.MaxInterval
	}
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(policy.Attempts-1)), ctx)

	return backoff.RetryWithData(func() (T, error) {
		res, err := fn(ctx)
		if err != nil && !errs.Transient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, b)
}
