package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/heat-stress-etl/internal/domain"
	"github.com/couchcryptid/heat-stress-etl/internal/observability"
	"github.com/couchcryptid/heat-stress-etl/internal/thermal"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportStore serves monthly station summaries from the history store.
type ReportStore interface {
	MonthlySummaries(ctx context.Context, month time.Time) ([]domain.MonthlySummary, error)
}

// Server exposes health, readiness, metrics, index, and report HTTP
// endpoints.
type Server struct {
	httpServer *http.Server
	engine     *thermal.Engine
	workers    int
	reports    ReportStore
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates the HTTP server. workers bounds the goroutines used for
// one batch index request. reports may be nil when no history store is
// configured; the report route then answers 503.
func NewServer(addr string, ready sharedobs.ReadinessChecker, engine *thermal.Engine, workers int, reports ReportStore, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:  engine,
		workers: workers,
		reports: reports,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/indices", s.handleIndices)
	mux.HandleFunc("GET /v1/reports/monthly", s.handleMonthlyReport)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
