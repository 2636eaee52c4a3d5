// Package metrics exposes Prometheus counters for the bot and an
// optional HTTP listener serving them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus collectors.
type Metrics struct {
	AnalysesTotal     *prometheus.CounterVec
	MatchedLinesTotal *prometheus.CounterVec
	ChunksSentTotal   prometheus.Counter
	UploadsTotal      prometheus.Counter
}

// New creates the collectors and registers them with the default
// registry.
func New() *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logsentry_analyses_total",
				Help: "Analysis passes, labeled by outcome",
			},
			[]string{"status"},
		),
		MatchedLinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logsentry_matched_lines_total",
				Help: "Log lines captured per filter",
			},
			[]string{"filter"},
		),
		ChunksSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "logsentry_chunks_sent_total",
				Help: "Report chunks delivered to the transport",
			},
		),
		UploadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "logsentry_uploads_total",
				Help: "Log files received through the transport",
			},
		),
	}

	prometheus.MustRegister(
		m.AnalysesTotal,
		m.MatchedLinesTotal,
		m.ChunksSentTotal,
		m.UploadsTotal,
	)
	return m
}

// Server is a minimal HTTP listener exposing /metrics.
type Server struct {
	server *http.Server
}

// NewServer builds the listener for the given address.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
