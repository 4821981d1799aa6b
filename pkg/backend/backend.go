package backend

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/samueltorres/r8backend/pkg/pool"
	"github.com/samueltorres/r8backend/pkg/store"
)

// ErrContentionExhausted is returned when a compare-and-swap loop kept
// losing races until its retry policy gave up. No write was made.
var ErrContentionExhausted = errors.New("compare-and-swap retries exhausted")

var errConflict = errors.New("compare-and-swap conflict")

const (
	opAdd        = "add"
	opIncr       = "incr"
	opDecr       = "decr"
	opIncrAndSum = "incr_and_sum"
)

type outcome string

const (
	outcomeApplied   outcome = "applied"
	outcomeExists    outcome = "exists"
	outcomeAbsent    outcome = "absent"
	outcomeRejected  outcome = "rejected"
	outcomeConflict  outcome = "conflict"
	outcomeExhausted outcome = "exhausted"
	outcomeError     outcome = "error"
)

// ConnPool hands out exclusive store connections.
type ConnPool interface {
	Reserve(ctx context.Context) (*pool.Lease, error)
}

// Backend implements bounded counters on top of a store that only
// offers versioned reads and compare-and-swap writes. It keeps no state
// between calls and is safe for concurrent use.
type Backend struct {
	pool    ConnPool
	policy  RetryPolicy
	logger  *logrus.Logger
	metrics *metrics
}

type Option func(*Backend)

// WithRetryPolicy sets how conflicting writes are retried.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(b *Backend) { b.policy = p }
}

// New creates a backend that reserves its connections from p.
func New(p ConnPool, logger *logrus.Logger, registerer prometheus.Registerer, opts ...Option) *Backend {
	b := &Backend{
		pool:    p,
		policy:  DefaultRetryPolicy(),
		logger:  logger,
		metrics: newMetrics(registerer),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// ttlSeconds converts a millisecond ttl to the store's second
// granularity. Sub-second remainders are truncated, so anything under
// 1000ms becomes 0, which stores treat as "no expiry". Negative ttls
// are clamped to 0 as well: they mean "never expire" here, not
// "already expired" as a raw negative memcached exptime would.
func ttlSeconds(ttl int64) int32 {
	s := ttl / 1000
	if s > math.MaxInt32 {
		return math.MaxInt32
	}
	if s < 0 {
		return 0
	}
	return int32(s)
}

// Add creates key with value unless it already exists. It reports true
// only for the caller that created the key; racing callers get false
// without retrying.
func (b *Backend) Add(ctx context.Context, key string, value int64, ttl int64) (bool, error) {
	start := time.Now()

	lease, err := b.pool.Reserve(ctx)
	if err != nil {
		return b.done(opAdd, start, outcomeError, errors.Wrap(err, "could not reserve store connection"))
	}
	defer lease.Release()

	created, err := lease.Conn().AddIfAbsent(ctx, key, value, ttlSeconds(ttl))
	if err != nil {
		return b.done(opAdd, start, outcomeError, errors.Wrapf(err, "add %q failed", key))
	}

	if !created {
		return b.done(opAdd, start, outcomeExists, nil)
	}
	return b.done(opAdd, start, outcomeApplied, nil)
}

// Incr adds amount to the counter at key unless the result would exceed
// maximum. It never creates the key.
func (b *Backend) Incr(ctx context.Context, key string, amount, maximum, ttl int64) (bool, error) {
	expiry := ttlSeconds(ttl)

	return b.mutate(ctx, opIncr, key, func(ctx context.Context, conn store.Conn) (outcome, error) {
		value, version, found, err := conn.GetWithVersion(ctx, key)
		if err != nil {
			return outcomeError, err
		}
		if !found {
			return outcomeAbsent, nil
		}

		value, ok := addWithin(value, amount, maximum)
		if !ok {
			return outcomeRejected, nil
		}

		return swap(ctx, conn, key, value, version, expiry)
	})
}

// Decr subtracts amount from the counter at key unless the result would
// drop below minimum. It never creates the key.
func (b *Backend) Decr(ctx context.Context, key string, amount, minimum, ttl int64) (bool, error) {
	expiry := ttlSeconds(ttl)

	return b.mutate(ctx, opDecr, key, func(ctx context.Context, conn store.Conn) (outcome, error) {
		value, version, found, err := conn.GetWithVersion(ctx, key)
		if err != nil {
			return outcomeError, err
		}
		if !found {
			return outcomeAbsent, nil
		}

		value, ok := subWithin(value, amount, minimum)
		if !ok {
			return outcomeRejected, nil
		}

		return swap(ctx, conn, key, value, version, expiry)
	})
}

// IncrAndSum adds amount to the counter at key unless either the
// counter itself or amount plus the sum of the counters at keys would
// exceed maximum. It never creates the key.
//
// The sibling values are read separately from the versioned read of
// key and are not part of the compare-and-swap, so writers racing on
// different siblings can each pass the check and overshoot maximum.
func (b *Backend) IncrAndSum(ctx context.Context, key string, keys []string, amount, maximum, ttl int64) (bool, error) {
	expiry := ttlSeconds(ttl)

	return b.mutate(ctx, opIncrAndSum, key, func(ctx context.Context, conn store.Conn) (outcome, error) {
		value, version, found, err := conn.GetWithVersion(ctx, key)
		if err != nil {
			return outcomeError, err
		}
		if !found {
			return outcomeAbsent, nil
		}

		value, ok := addWithin(value, amount, maximum)
		if !ok {
			return outcomeRejected, nil
		}

		total := new(big.Int).SetInt64(amount)
		if len(keys) > 0 {
			siblings, err := conn.MultiGet(ctx, keys)
			if err != nil {
				return outcomeError, err
			}
			for _, v := range siblings {
				total.Add(total, big.NewInt(v))
			}
		}
		if total.Cmp(big.NewInt(maximum)) > 0 {
			return outcomeRejected, nil
		}

		return swap(ctx, conn, key, value, version, expiry)
	})
}

// addWithin returns value+amount and whether it is representable and
// not above maximum.
func addWithin(value, amount, maximum int64) (int64, bool) {
	sum := value + amount
	if (amount > 0 && sum < value) || (amount < 0 && sum > value) {
		return value, false
	}
	return sum, sum <= maximum
}

// subWithin returns value-amount and whether it is representable and
// not below minimum.
func subWithin(value, amount, minimum int64) (int64, bool) {
	diff := value - amount
	if (amount > 0 && diff > value) || (amount < 0 && diff < value) {
		return value, false
	}
	return diff, diff >= minimum
}

func swap(ctx context.Context, conn store.Conn, key string, value int64, version store.Version, ttl int32) (outcome, error) {
	swapped, err := conn.CompareAndSwap(ctx, key, value, version, ttl)
	if err != nil {
		return outcomeError, err
	}
	if !swapped {
		return outcomeConflict, nil
	}
	return outcomeApplied, nil
}

type attemptFunc func(ctx context.Context, conn store.Conn) (outcome, error)

// mutate runs attempt on a single reserved connection until it reaches
// a final outcome, backing off between conflicts.
func (b *Backend) mutate(ctx context.Context, op string, key string, attempt attemptFunc) (bool, error) {
	start := time.Now()

	lease, err := b.pool.Reserve(ctx)
	if err != nil {
		return b.done(op, start, outcomeError, errors.Wrap(err, "could not reserve store connection"))
	}
	defer lease.Release()
	conn := lease.Conn()

	logger := b.logger.WithFields(logrus.Fields{"op": op, "key": key})
	retries := 0

	o, err := backoff.RetryNotifyWithData(
		func() (outcome, error) {
			o, err := attempt(ctx, conn)
			if err != nil {
				return o, backoff.Permanent(err)
			}
			if o == outcomeConflict {
				b.metrics.casConflicts.WithLabelValues(op).Inc()
				return o, errConflict
			}
			return o, nil
		},
		backoff.WithContext(b.policy.newBackOff(), ctx),
		func(_ error, wait time.Duration) {
			retries++
			logger.Debugf("cas conflict, retry %d in %s", retries, wait)
		},
	)

	switch {
	case err == nil:
		return b.done(op, start, o, nil)
	case err == errConflict:
		logger.Warnf("giving up after %d retries", retries)
		return b.done(op, start, outcomeExhausted, errors.Wrapf(ErrContentionExhausted, "%s %q", op, key))
	default:
		return b.done(op, start, outcomeError, errors.Wrapf(err, "%s %q failed", op, key))
	}
}

func (b *Backend) done(op string, start time.Time, o outcome, err error) (bool, error) {
	b.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	b.metrics.operations.WithLabelValues(op, string(o)).Inc()

	return o == outcomeApplied, err
}
