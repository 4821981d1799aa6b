package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/negroni"
)

type metricsMiddleware struct {
	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	inFlight       prometheus.Gauge
}

func NewMetricsMiddleware(registerer prometheus.Registerer) *metricsMiddleware {
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counter_api_requests_total",
			Help: "Total counter API requests",
		},
		[]string{"op", "status"})

	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "counter_api_request_duration_seconds",
			Help:    "Duration of the counter API requests",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
		},
		[]string{"op", "status"})

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "counter_api_requests_in_flight",
		Help: "Counter API requests currently being served",
	})

	registerer.MustRegister(requestCounter, requestLatency, inFlight)

	return &metricsMiddleware{
		requestCounter: requestCounter,
		requestLatency: requestLatency,
		inFlight:       inFlight,
	}
}

func (m *metricsMiddleware) Handler(op string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ww := negroni.NewResponseWriter(w)
		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		m.requestCounter.WithLabelValues(op, status).Inc()
		m.requestLatency.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	})
}
