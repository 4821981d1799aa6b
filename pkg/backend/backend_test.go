package backend

import (
	"context"
	"io/ioutil"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/samueltorres/r8backend/pkg/memory"
	"github.com/samueltorres/r8backend/pkg/pool"
	"github.com/samueltorres/r8backend/pkg/store"
)

var fastRetryPolicy = RetryPolicy{
	InitialInterval:     10 * time.Microsecond,
	MaxInterval:         time.Millisecond,
	Multiplier:          2,
	RandomizationFactor: 0.5,
}

func newNullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}

func newTestBackend(t *testing.T, dial store.Dialer, poolSize int, opts ...Option) *Backend {
	t.Helper()

	p, err := pool.New(poolSize, dial, newNullLogger(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	opts = append([]Option{WithRetryPolicy(fastRetryPolicy)}, opts...)
	return New(p, newNullLogger(), prometheus.NewRegistry(), opts...)
}

func newMemoryBackend(t *testing.T) (*Backend, *memory.Storage) {
	t.Helper()

	s := memory.NewStorage(newNullLogger())
	return newTestBackend(t, s.Dialer(), 4), s
}

func storedValue(t *testing.T, s store.Conn, key string) int64 {
	t.Helper()

	v, _, found, err := s.GetWithVersion(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found, "key %q should exist", key)
	return v
}

type connMock struct {
	mock.Mock
}

func (c *connMock) GetWithVersion(ctx context.Context, key string) (int64, store.Version, bool, error) {
	args := c.Called(ctx, key)
	return args.Get(0).(int64), args.Get(1).(store.Version), args.Bool(2), args.Error(3)
}

func (c *connMock) CompareAndSwap(ctx context.Context, key string, value int64, version store.Version, ttl int32) (bool, error) {
	args := c.Called(ctx, key, value, version, ttl)
	return args.Bool(0), args.Error(1)
}

func (c *connMock) AddIfAbsent(ctx context.Context, key string, value int64, ttl int32) (bool, error) {
	args := c.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (c *connMock) MultiGet(ctx context.Context, keys []string) (map[string]int64, error) {
	args := c.Called(ctx, keys)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (c *connMock) Close() error {
	return nil
}

func mockDialer(c *connMock) store.Dialer {
	return func() (store.Conn, error) {
		return c, nil
	}
}

// racingConn lets another writer update key right before the first
// compare-and-swap, forcing exactly one conflict.
type racingConn struct {
	*memory.Storage
	raced bool
}

func (c *racingConn) CompareAndSwap(ctx context.Context, key string, value int64, version store.Version, ttl int32) (bool, error) {
	if !c.raced {
		c.raced = true
		v, ver, _, _ := c.Storage.GetWithVersion(ctx, key)
		if _, err := c.Storage.CompareAndSwap(ctx, key, v+1, ver, ttl); err != nil {
			return false, err
		}
	}
	return c.Storage.CompareAndSwap(ctx, key, value, version, ttl)
}

func TestTTLSeconds(t *testing.T) {
	testCases := []struct {
		desc string
		ttl  int64
		want int32
	}{
		{desc: "Sub-second truncates to zero", ttl: 500, want: 0},
		{desc: "Exact second", ttl: 1000, want: 1},
		{desc: "Truncates, does not round", ttl: 1999, want: 1},
		{desc: "Minute", ttl: 60000, want: 60},
		{desc: "Negative clamps to zero, never expires", ttl: -5000, want: 0},
		{desc: "Overflow clamps to max", ttl: 1 << 50, want: 1<<31 - 1},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.want, ttlSeconds(tC.ttl))
		})
	}
}

func TestBoundedArithmetic(t *testing.T) {
	testCases := []struct {
		desc   string
		fn     func(value, amount, bound int64) (int64, bool)
		value  int64
		amount int64
		bound  int64
		want   int64
		wantOK bool
	}{
		{desc: "Add within", fn: addWithin, value: 3, amount: 2, bound: 5, want: 5, wantOK: true},
		{desc: "Add above maximum", fn: addWithin, value: 3, amount: 3, bound: 5, want: 6, wantOK: false},
		{desc: "Add overflows", fn: addWithin, value: math.MaxInt64, amount: 1, bound: math.MaxInt64, want: math.MaxInt64, wantOK: false},
		{desc: "Add underflows", fn: addWithin, value: math.MinInt64, amount: -1, bound: math.MaxInt64, want: math.MinInt64, wantOK: false},
		{desc: "Sub within", fn: subWithin, value: 3, amount: 3, bound: 0, want: 0, wantOK: true},
		{desc: "Sub below minimum", fn: subWithin, value: 0, amount: 1, bound: 0, want: -1, wantOK: false},
		{desc: "Sub underflows", fn: subWithin, value: math.MinInt64, amount: 1, bound: math.MinInt64, want: math.MinInt64, wantOK: false},
		{desc: "Sub overflows", fn: subWithin, value: math.MaxInt64, amount: -1, bound: math.MinInt64, want: math.MaxInt64, wantOK: false},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			got, ok := tC.fn(tC.value, tC.amount, tC.bound)

			assert.Equal(t, tC.wantOK, ok)
			assert.Equal(t, tC.want, got)
		})
	}
}

func TestBackend_Add(t *testing.T) {
	ctx := context.Background()
	b, s := newMemoryBackend(t)

	ok, err := b.Add(ctx, "k", 5, 60000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Add(ctx, "k", 9, 60000)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(5), storedValue(t, s, "k"))
}

func TestBackend_Add_PassesTruncatedTTL(t *testing.T) {
	conn := new(connMock)
	conn.On("AddIfAbsent", mock.Anything, "k", int64(1), int32(0)).Return(true, nil).Once()
	b := newTestBackend(t, mockDialer(conn), 1)

	ok, err := b.Add(context.Background(), "k", 1, 500)

	require.NoError(t, err)
	assert.True(t, ok)
	conn.AssertExpectations(t)
}

func TestBackend_NegativeTTLNeverExpires(t *testing.T) {
	conn := new(connMock)
	conn.On("AddIfAbsent", mock.Anything, "k", int64(1), int32(0)).Return(true, nil).Once()
	conn.On("GetWithVersion", mock.Anything, "k").Return(int64(1), store.Version(3), true, nil).Once()
	conn.On("CompareAndSwap", mock.Anything, "k", int64(2), store.Version(3), int32(0)).Return(true, nil).Once()
	b := newTestBackend(t, mockDialer(conn), 1)
	ctx := context.Background()

	ok, err := b.Add(ctx, "k", 1, -5000)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Incr(ctx, "k", 1, 10, -5000)
	require.NoError(t, err)
	assert.True(t, ok)

	conn.AssertExpectations(t)
}

func TestBackend_Add_ConcurrentFirstWriterWins(t *testing.T) {
	b, _ := newMemoryBackend(t)
	winners := atomic.NewInt32(0)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			ok, err := b.Add(context.Background(), "k", v, 60000)
			if err == nil && ok {
				winners.Inc()
			}
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestBackend_Incr(t *testing.T) {
	testCases := []struct {
		desc      string
		initial   int64
		create    bool
		amount    int64
		maximum   int64
		want      bool
		wantValue int64
	}{
		{
			desc:      "Result below maximum",
			create:    true,
			initial:   3,
			amount:    1,
			maximum:   5,
			want:      true,
			wantValue: 4,
		},
		{
			desc:      "Result equal to maximum",
			create:    true,
			initial:   3,
			amount:    2,
			maximum:   5,
			want:      true,
			wantValue: 5,
		},
		{
			desc:      "Result above maximum, rejected",
			create:    true,
			initial:   5,
			amount:    1,
			maximum:   5,
			want:      false,
			wantValue: 5,
		},
		{
			desc:    "Absent key, rejected without creating",
			create:  false,
			amount:  1,
			maximum: 5,
			want:    false,
		},
		{
			desc:      "Result past MaxInt64, rejected instead of wrapping",
			create:    true,
			initial:   math.MaxInt64,
			amount:    1,
			maximum:   math.MaxInt64,
			want:      false,
			wantValue: math.MaxInt64,
		},
		{
			desc:      "Negative amount past MinInt64, rejected instead of wrapping",
			create:    true,
			initial:   math.MinInt64,
			amount:    -1,
			maximum:   0,
			want:      false,
			wantValue: math.MinInt64,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			b, s := newMemoryBackend(t)
			if tC.create {
				_, err := s.AddIfAbsent(ctx, "c", tC.initial, 0)
				require.NoError(t, err)
			}

			// act
			got, err := b.Incr(ctx, "c", tC.amount, tC.maximum, 1000)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tC.want, got)
			if tC.create {
				assert.Equal(t, tC.wantValue, storedValue(t, s, "c"))
			} else {
				_, _, found, err := s.GetWithVersion(ctx, "c")
				require.NoError(t, err)
				assert.False(t, found)
			}
		})
	}
}

func TestBackend_Incr_UpToMaximumThenRejects(t *testing.T) {
	ctx := context.Background()
	b, s := newMemoryBackend(t)
	_, err := s.AddIfAbsent(ctx, "c", 3, 0)
	require.NoError(t, err)

	ok, err := b.Incr(ctx, "c", 2, 5, 1000)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(5), storedValue(t, s, "c"))

	ok, err = b.Incr(ctx, "c", 1, 5, 1000)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(5), storedValue(t, s, "c"))
}

func TestBackend_Decr(t *testing.T) {
	testCases := []struct {
		desc      string
		initial   int64
		create    bool
		amount    int64
		minimum   int64
		want      bool
		wantValue int64
	}{
		{
			desc:      "Result above minimum",
			create:    true,
			initial:   3,
			amount:    1,
			minimum:   0,
			want:      true,
			wantValue: 2,
		},
		{
			desc:      "Result equal to minimum",
			create:    true,
			initial:   3,
			amount:    3,
			minimum:   0,
			want:      true,
			wantValue: 0,
		},
		{
			desc:      "Result below minimum, rejected",
			create:    true,
			initial:   0,
			amount:    1,
			minimum:   0,
			want:      false,
			wantValue: 0,
		},
		{
			desc:    "Absent key, rejected without creating",
			create:  false,
			amount:  1,
			minimum: 0,
			want:    false,
		},
		{
			desc:      "Result past MinInt64, rejected instead of wrapping",
			create:    true,
			initial:   math.MinInt64,
			amount:    1,
			minimum:   math.MinInt64,
			want:      false,
			wantValue: math.MinInt64,
		},
		{
			desc:      "Negative amount past MaxInt64, rejected instead of wrapping",
			create:    true,
			initial:   math.MaxInt64,
			amount:    -1,
			minimum:   0,
			want:      false,
			wantValue: math.MaxInt64,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			b, s := newMemoryBackend(t)
			if tC.create {
				_, err := s.AddIfAbsent(ctx, "c", tC.initial, 0)
				require.NoError(t, err)
			}

			// act
			got, err := b.Decr(ctx, "c", tC.amount, tC.minimum, 1000)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tC.want, got)
			if tC.create {
				assert.Equal(t, tC.wantValue, storedValue(t, s, "c"))
			} else {
				_, _, found, err := s.GetWithVersion(ctx, "c")
				require.NoError(t, err)
				assert.False(t, found)
			}
		})
	}
}

func TestBackend_IncrAndSum(t *testing.T) {
	testCases := []struct {
		desc      string
		stored    map[string]int64
		key       string
		keys      []string
		amount    int64
		maximum   int64
		want      bool
		wantValue int64
	}{
		{
			desc:      "Group sum above maximum, rejected",
			stored:    map[string]int64{"a": 2, "b": 6},
			key:       "a",
			keys:      []string{"a", "b"},
			amount:    3,
			maximum:   10,
			want:      false,
			wantValue: 2,
		},
		{
			desc:      "Group sum within maximum",
			stored:    map[string]int64{"a": 2, "b": 4},
			key:       "a",
			keys:      []string{"a", "b"},
			amount:    3,
			maximum:   10,
			want:      true,
			wantValue: 5,
		},
		{
			desc:      "Individual value above maximum, rejected before group read",
			stored:    map[string]int64{"a": 9},
			key:       "a",
			keys:      []string{"b"},
			amount:    2,
			maximum:   10,
			want:      false,
			wantValue: 9,
		},
		{
			desc:      "Absent siblings count as nothing",
			stored:    map[string]int64{"a": 1},
			key:       "a",
			keys:      []string{"b", "c"},
			amount:    2,
			maximum:   2,
			want:      true,
			wantValue: 3,
		},
		{
			desc:      "Group sum past MaxInt64, rejected instead of wrapping",
			stored:    map[string]int64{"a": 1, "b": math.MaxInt64},
			key:       "a",
			keys:      []string{"b"},
			amount:    1,
			maximum:   math.MaxInt64,
			want:      false,
			wantValue: 1,
		},
		{
			desc:      "Group sum below MinInt64 still compared exactly",
			stored:    map[string]int64{"a": 1, "b": math.MinInt64, "c": math.MinInt64},
			key:       "a",
			keys:      []string{"b", "c"},
			amount:    1,
			maximum:   10,
			want:      true,
			wantValue: 2,
		},
		{
			desc:      "Sibling group excluding key",
			stored:    map[string]int64{"a": 1, "b": 7},
			key:       "a",
			keys:      []string{"b"},
			amount:    3,
			maximum:   10,
			want:      true,
			wantValue: 4,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			b, s := newMemoryBackend(t)
			for k, v := range tC.stored {
				_, err := s.AddIfAbsent(ctx, k, v, 0)
				require.NoError(t, err)
			}

			// act
			got, err := b.IncrAndSum(ctx, tC.key, tC.keys, tC.amount, tC.maximum, 1000)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tC.want, got)
			assert.Equal(t, tC.wantValue, storedValue(t, s, tC.key))
		})
	}
}

func TestBackend_MutationsOnAbsentKeyNeverWrite(t *testing.T) {
	conn := new(connMock)
	conn.On("GetWithVersion", mock.Anything, "missing").Return(int64(0), store.Version(0), false, nil)
	b := newTestBackend(t, mockDialer(conn), 1)
	ctx := context.Background()

	ok, err := b.Incr(ctx, "missing", 1, 10, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.Decr(ctx, "missing", 1, 0, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.IncrAndSum(ctx, "missing", []string{"x"}, 1, 10, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	conn.AssertNotCalled(t, "CompareAndSwap", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	conn.AssertNotCalled(t, "AddIfAbsent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	conn.AssertNotCalled(t, "MultiGet", mock.Anything, mock.Anything)
}

func TestBackend_Incr_RetriesAfterConflict(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(newNullLogger())
	_, err := s.AddIfAbsent(ctx, "c", 1, 0)
	require.NoError(t, err)
	conn := &racingConn{Storage: s}
	b := newTestBackend(t, func() (store.Conn, error) { return conn, nil }, 1)

	ok, err := b.Incr(ctx, "c", 5, 10, 1000)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, conn.raced)
	// 1 from the racing writer, 5 from the retried increment
	assert.Equal(t, int64(7), storedValue(t, s, "c"))
}

func TestBackend_IncrAndSum_RestartRereadsGroup(t *testing.T) {
	conn := new(connMock)
	conn.On("GetWithVersion", mock.Anything, "a").Return(int64(1), store.Version(1), true, nil).Once()
	conn.On("GetWithVersion", mock.Anything, "a").Return(int64(2), store.Version(2), true, nil).Once()
	conn.On("MultiGet", mock.Anything, []string{"b"}).Return(map[string]int64{"b": 4}, nil).Once()
	conn.On("MultiGet", mock.Anything, []string{"b"}).Return(map[string]int64{"b": 8}, nil).Once()
	conn.On("CompareAndSwap", mock.Anything, "a", int64(3), store.Version(1), int32(1)).Return(false, nil).Once()
	b := newTestBackend(t, mockDialer(conn), 1)

	ok, err := b.IncrAndSum(context.Background(), "a", []string{"b"}, 2, 9, 1000)

	require.NoError(t, err)
	assert.False(t, ok, "second pass sees b=8, 2+8 > 9")
	conn.AssertExpectations(t)
}

func TestBackend_ContentionExhausted(t *testing.T) {
	conn := new(connMock)
	conn.On("GetWithVersion", mock.Anything, "c").Return(int64(1), store.Version(7), true, nil)
	conn.On("CompareAndSwap", mock.Anything, "c", int64(2), store.Version(7), int32(1)).Return(false, nil)
	policy := fastRetryPolicy
	policy.MaxRetries = 3
	b := newTestBackend(t, mockDialer(conn), 1, WithRetryPolicy(policy))

	ok, err := b.Incr(context.Background(), "c", 1, 10, 1000)

	assert.False(t, ok)
	assert.Equal(t, ErrContentionExhausted, errors.Cause(err))
	conn.AssertNumberOfCalls(t, "CompareAndSwap", 4)
}

func TestBackend_ContextCancelledWhileRetrying(t *testing.T) {
	conn := new(connMock)
	conn.On("GetWithVersion", mock.Anything, "c").Return(int64(1), store.Version(7), true, nil)
	conn.On("CompareAndSwap", mock.Anything, "c", int64(2), store.Version(7), int32(1)).Return(false, nil)
	policy := RetryPolicy{
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Multiplier:      1,
	}
	b := newTestBackend(t, mockDialer(conn), 1, WithRetryPolicy(policy))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ok, err := b.Incr(ctx, "c", 1, 10, 1000)

	assert.False(t, ok)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
}

func TestBackend_StoreFailurePropagatesAndReleasesConnection(t *testing.T) {
	storeErr := errors.New("connection reset by peer")
	testCases := []struct {
		desc string
		call func(b *Backend) (bool, error)
		mock func(c *connMock)
	}{
		{
			desc: "Add",
			call: func(b *Backend) (bool, error) { return b.Add(context.Background(), "k", 1, 1000) },
			mock: func(c *connMock) {
				c.On("AddIfAbsent", mock.Anything, "k", int64(1), int32(1)).Return(false, storeErr)
			},
		},
		{
			desc: "Incr read",
			call: func(b *Backend) (bool, error) { return b.Incr(context.Background(), "k", 1, 10, 1000) },
			mock: func(c *connMock) {
				c.On("GetWithVersion", mock.Anything, "k").Return(int64(0), store.Version(0), false, storeErr)
			},
		},
		{
			desc: "Decr write",
			call: func(b *Backend) (bool, error) { return b.Decr(context.Background(), "k", 1, 0, 1000) },
			mock: func(c *connMock) {
				c.On("GetWithVersion", mock.Anything, "k").Return(int64(3), store.Version(1), true, nil)
				c.On("CompareAndSwap", mock.Anything, "k", int64(2), store.Version(1), int32(1)).Return(false, storeErr)
			},
		},
		{
			desc: "IncrAndSum group read",
			call: func(b *Backend) (bool, error) {
				return b.IncrAndSum(context.Background(), "k", []string{"j"}, 1, 10, 1000)
			},
			mock: func(c *connMock) {
				c.On("GetWithVersion", mock.Anything, "k").Return(int64(3), store.Version(1), true, nil)
				c.On("MultiGet", mock.Anything, []string{"j"}).Return(map[string]int64(nil), storeErr)
			},
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			// arrange
			conn := new(connMock)
			tC.mock(conn)
			b := newTestBackend(t, mockDialer(conn), 1)

			// act
			ok, err := tC.call(b)

			// assert
			assert.False(t, ok)
			assert.Equal(t, storeErr, errors.Cause(err))

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			lease, err := b.pool.Reserve(ctx)
			require.NoError(t, err, "connection must be released after a store failure")
			lease.Release()
		})
	}
}

func TestBackend_ConcurrentIncrDecrIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(newNullLogger())
	b := newTestBackend(t, s.Dialer(), 8)

	const (
		initial = int64(50)
		minimum = int64(0)
		maximum = int64(100)
	)
	_, err := s.AddIfAbsent(ctx, "c", initial, 0)
	require.NoError(t, err)

	applied := atomic.NewInt64(0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for j := 0; j < 25; j++ {
				amount := int64(rnd.Intn(5) + 1)
				if rnd.Intn(2) == 0 {
					ok, err := b.Incr(ctx, "c", amount, maximum, 60000)
					if err == nil && ok {
						applied.Add(amount)
					}
				} else {
					ok, err := b.Decr(ctx, "c", amount, minimum, 60000)
					if err == nil && ok {
						applied.Sub(amount)
					}
				}
			}
		}(int64(i))
	}
	wg.Wait()

	final := storedValue(t, s, "c")
	assert.Equal(t, initial+applied.Load(), final)
	assert.GreaterOrEqual(t, final, minimum)
	assert.LessOrEqual(t, final, maximum)
}

func TestBackend_ConcurrentIncrNeverExceedsMaximum(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStorage(newNullLogger())
	b := newTestBackend(t, s.Dialer(), 8)
	_, err := s.AddIfAbsent(ctx, "c", 0, 0)
	require.NoError(t, err)

	succeeded := atomic.NewInt32(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := b.Incr(ctx, "c", 1, 10, 60000)
			if err == nil && ok {
				succeeded.Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int64(10), storedValue(t, s, "c"))
}
