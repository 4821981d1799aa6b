package http

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// CounterBackend is the set of counter operations served over HTTP.
type CounterBackend interface {
	Add(ctx context.Context, key string, value int64, ttl int64) (bool, error)
	Incr(ctx context.Context, key string, amount, maximum, ttl int64) (bool, error)
	Decr(ctx context.Context, key string, amount, minimum, ttl int64) (bool, error)
	IncrAndSum(ctx context.Context, key string, keys []string, amount, maximum, ttl int64) (bool, error)
}

type Server struct {
	server *http.Server
	logger *logrus.Logger

	listen            string
	shutdownTimeout   time.Duration
	readHeaderTimeout time.Duration
}

type Option func(*Server)

func WithListen(addr string) Option {
	return func(s *Server) { s.listen = addr }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) { s.readHeaderTimeout = d }
}

// New builds the HTTP API around backend.
func New(backend CounterBackend, logger *logrus.Logger, registerer prometheus.Registerer, opts ...Option) *Server {
	s := &Server{
		logger:            logger,
		listen:            ":8082",
		shutdownTimeout:   5 * time.Second,
		readHeaderTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:              s.listen,
		Handler:           NewHandler(backend, logger, registerer),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	return s
}

// NewHandler routes the counter endpoints, instrumented with request
// metrics.
func NewHandler(backend CounterBackend, logger *logrus.Logger, registerer prometheus.Registerer) http.Handler {
	h := &counterHandler{backend: backend, logger: logger}
	m := NewMetricsMiddleware(registerer)

	router := httprouter.New()
	router.Handler(http.MethodPost, "/v1/add", m.Handler("add", h.handleAdd))
	router.Handler(http.MethodPost, "/v1/incr", m.Handler("incr", h.handleIncr))
	router.Handler(http.MethodPost, "/v1/decr", m.Handler("decr", h.handleDecr))
	router.Handler(http.MethodPost, "/v1/incr_and_sum", m.Handler("incr_and_sum", h.handleIncrAndSum))
	router.HandlerFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router
}

func (s *Server) Start() error {
	s.logger.Infof("http server listening on %s", s.listen)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(err error) {
	s.logger.Infof("stopping http server: %v", err)

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Errorf("http server shutdown: %v", err)
	}
}
