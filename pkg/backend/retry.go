package backend

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how a compare-and-swap loop waits after losing a
// race. Delays grow exponentially and are randomized so that colliding
// writers spread out.
type RetryPolicy struct {
	// MaxRetries caps the number of retries after a conflict. Zero
	// retries forever.
	MaxRetries          int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:          64,
		InitialInterval:     time.Millisecond,
		MaxInterval:         100 * time.Millisecond,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = p.RandomizationFactor
	// attempts are bounded by MaxRetries, not wall time
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(eb, uint64(p.MaxRetries))
	}
	b.Reset()
	return b
}
