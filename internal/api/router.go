package api

import (
	"net/http"

	"log/slog"

	"github.com/trendwatch/trendwatch/internal/auth"
	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/metrics"
)

// SetupRoutes wires the HTTP surface. Read endpoints are public; the ingest
// trigger takes the pre-shared token; run and candidate mutations take an
// operator JWT.
func SetupRoutes(mux *http.ServeMux, handler *Handler, cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) {
	authHandler := NewAuthHandler(cfg.Auth, logger)
	operator := auth.OperatorMiddleware(cfg.Auth)
	ingest := auth.IngestMiddleware(cfg.Auth)

	mux.HandleFunc("/api/auth/login", authHandler.Login)

	mux.Handle("/api/ingest", ingest(http.HandlerFunc(handler.IngestHandler)))

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			operator(http.HandlerFunc(handler.RunsHandler)).ServeHTTP(w, r)
			return
		}
		handler.RunsHandler(w, r)
	})
	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			operator(http.HandlerFunc(handler.RunByIDHandler)).ServeHTTP(w, r)
			return
		}
		handler.RunByIDHandler(w, r)
	})

	mux.Handle("/api/candidates", operator(http.HandlerFunc(handler.CandidatesHandler)))
	mux.Handle("/api/candidates/", operator(http.HandlerFunc(handler.CandidateByIDHandler)))

	mux.HandleFunc("/api/overview", handler.OverviewHandler)

	mux.HandleFunc("/healthz", handler.HealthHandler)
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
}
