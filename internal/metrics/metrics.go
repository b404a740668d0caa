// Package metrics exposes load-test counters and latency histograms over a
// small HTTP endpoint so long-running tests can be watched from Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bookedbarber/cacheops/internal/workload"
)

// Collector holds the Prometheus instruments for one load-test process.
type Collector struct {
	registry *prometheus.Registry
	opsTotal *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewCollector creates and registers the load-test instruments.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	opsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cacheops_operations_total",
		Help: "Cache operations executed, by operation and status.",
	}, []string{"operation", "status"})

	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cacheops_operation_latency_seconds",
		Help:    "Latency of successful cache operations.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
	})

	registry.MustRegister(opsTotal, latency)

	return &Collector{
		registry: registry,
		opsTotal: opsTotal,
		latency:  latency,
	}
}

// Observe records one operation result.
func (c *Collector) Observe(res workload.OperationResult) {
	status := "success"
	if !res.Success {
		status = "failure"
	}
	c.opsTotal.WithLabelValues(string(res.Op), status).Inc()
	if res.Success {
		c.latency.Observe(res.ResponseTime.Seconds())
	}
}

// Handler returns the /metrics handler for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts a metrics endpoint on addr in the background. The returned
// server should be shut down by the caller when the test completes.
func Serve(addr string, c *Collector, logger *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", c.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}
