package pool

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/samueltorres/r8backend/pkg/store"
)

// DefaultSize is the number of connections a pool holds when no size
// is configured.
const DefaultSize = 8

// ErrClosed is returned by Reserve once the pool has been closed.
var ErrClosed = errors.New("pool is closed")

type poolMetrics struct {
	leased   prometheus.Gauge
	waitTime prometheus.Histogram
}

func newPoolMetrics(r prometheus.Registerer) *poolMetrics {
	var m poolMetrics

	m.leased = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "store_pool_leased_connections",
		Help: "Number of store connections currently reserved",
	})

	m.waitTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_pool_reserve_wait_seconds",
		Help:    "Time spent waiting for a store connection",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	r.MustRegister(m.leased, m.waitTime)
	return &m
}

// Pool is a fixed-size set of store connections. Each connection is
// used by at most one Lease at a time.
type Pool struct {
	idle   chan store.Conn
	conns  []store.Conn
	closed chan struct{}
	once   sync.Once

	logger  *logrus.Logger
	metrics *poolMetrics
}

// New dials size connections up front. A size <= 0 means DefaultSize.
// If any dial fails the connections opened so far are closed and the
// error is returned.
func New(size int, dial store.Dialer, logger *logrus.Logger, registerer prometheus.Registerer) (*Pool, error) {
	if size <= 0 {
		size = DefaultSize
	}

	p := &Pool{
		idle:    make(chan store.Conn, size),
		conns:   make([]store.Conn, 0, size),
		closed:  make(chan struct{}),
		logger:  logger,
		metrics: newPoolMetrics(registerer),
	}

	for i := 0; i < size; i++ {
		conn, err := dial()
		if err != nil {
			p.closeConns()
			return nil, errors.Wrapf(err, "could not dial store connection %d/%d", i+1, size)
		}
		p.conns = append(p.conns, conn)
		p.idle <- conn
	}

	logger.Debugf("store pool ready with %d connections", size)

	return p, nil
}

// Size returns the number of connections held by the pool.
func (p *Pool) Size() int {
	return len(p.conns)
}

// Reserve blocks until a connection is free. It only gives up when ctx
// is done or the pool is closed; with a context that is never
// cancelled the wait is unbounded.
func (p *Pool) Reserve(ctx context.Context) (*Lease, error) {
	select {
	case <-p.closed:
		return nil, ErrClosed
	default:
	}

	start := time.Now()
	select {
	case conn := <-p.idle:
		p.metrics.waitTime.Observe(time.Since(start).Seconds())
		p.metrics.leased.Inc()
		return &Lease{pool: p, conn: conn}, nil
	case <-p.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pool) put(conn store.Conn) {
	p.metrics.leased.Dec()
	p.idle <- conn
}

// Close closes every connection of the pool. Leases still held keep
// their connection object but further Reserve calls fail.
func (p *Pool) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		err = p.closeConns()
	})
	return err
}

func (p *Pool) closeConns() error {
	var first error
	for _, conn := range p.conns {
		if err := conn.Close(); err != nil {
			p.logger.Warnf("error closing store connection: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Lease is exclusive use of one pooled connection.
type Lease struct {
	pool *Pool
	conn store.Conn
	once sync.Once
}

// Conn returns the leased connection.
func (l *Lease) Conn() store.Conn {
	return l.conn
}

// Release hands the connection back to the pool. Calling it more than
// once has no effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.pool.put(l.conn)
	})
}
