// Package metrics exposes ledger counters and batch timings to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hopper/internal/ledger"
	"hopper/internal/logging"
	"hopper/internal/scheduler"
)

const namespace = "hopper"

// SnapshotSource is satisfied by *ledger.Ledger.
type SnapshotSource interface {
	Snapshot() ledger.Snapshot
}

// Collector owns a private registry so tests and multiple daemons never
// collide on the global one.
type Collector struct {
	registry      *prometheus.Registry
	batchDuration prometheus.Histogram
	batchFiles    prometheus.Histogram
}

// New registers collectors reading from source.
func New(source SnapshotSource) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of non-empty poll batches.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		batchFiles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_files",
			Help:      "Files per non-empty poll batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	read := func(pick func(ledger.Snapshot) float64) func() float64 {
		return func() float64 { return pick(source.Snapshot()) }
	}
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files taken through a completed batch.",
		}, read(func(s ledger.Snapshot) float64 { return float64(s.Processed) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_valid_total",
			Help:      "Files checksummed, compressed and archived.",
		}, read(func(s ledger.Snapshot) float64 { return float64(s.Valid) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_failed_total",
			Help:      "Files rejected by validation or left unresolved by an I/O error.",
		}, read(func(s ledger.Snapshot) float64 { return float64(s.Failed) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_in_flight",
			Help:      "Files in the batch currently being processed.",
		}, read(func(s ledger.Snapshot) float64 { return float64(s.InFlight) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Entries currently held in the status history window.",
		}, read(func(s ledger.Snapshot) float64 { return float64(len(s.History)) })),
		c.batchDuration,
		c.batchFiles,
	)
	return c
}

// ObserveBatch records a finished batch. Empty polls are ignored.
func (c *Collector) ObserveBatch(report scheduler.BatchReport) {
	if report.Files == 0 {
		return
	}
	c.batchDuration.Observe(report.Duration.Seconds())
	c.batchFiles.Observe(float64(report.Files))
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics on a listener until Shutdown.
type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
}

// Listen binds addr and starts serving in the background.
func (c *Collector) Listen(addr string, logger *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	s := &Server{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		logger:   logging.NewComponentLogger(logger, "metrics"),
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", logging.Error(err))
		}
	}()
	s.logger.Info("metrics endpoint listening", logging.String("addr", ln.Addr().String()))
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
