package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"

	"github.com/trendwatch/trendwatch/internal/aggregate"
	"github.com/trendwatch/trendwatch/internal/candidates"
	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/database"
	"github.com/trendwatch/trendwatch/internal/harvest"
	"github.com/trendwatch/trendwatch/internal/orchestrator"
)

// Handler bundles the pipeline components the HTTP surface exposes.
type Handler struct {
	harvester    *harvest.Harvester
	manager      *candidates.Manager
	orchestrator *orchestrator.Orchestrator
	aggregator   *aggregate.Aggregator
	cfg          *config.Config
	db           *sql.DB // nil when running on the in-memory store
	logger       *slog.Logger
	startTime    time.Time
}

// NewHandler creates the API handler.
func NewHandler(harvester *harvest.Harvester, manager *candidates.Manager, orch *orchestrator.Orchestrator, aggregator *aggregate.Aggregator, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		harvester:    harvester,
		manager:      manager,
		orchestrator: orch,
		aggregator:   aggregator,
		cfg:          cfg,
		logger:       logger,
		startTime:    time.Now(),
	}
}

// SetDB attaches the database handle for health reporting.
func (h *Handler) SetDB(db *sql.DB) {
	h.db = db
}

// IngestHandler handles POST /api/ingest: one synchronous harvest pass.
func (h *Handler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.harvester.Harvest(r.Context())
	if err != nil {
		h.logger.Error("harvest failed", "error", err)
		http.Error(w, "Harvest failed", http.StatusBadGateway)
		return
	}

	// Score whatever the pass produced so candidates become selectable
	// without waiting for the next scheduled scoring sweep.
	scored, err := h.manager.ScorePending(r.Context(), h.cfg.Harvest.BatchSize)
	if err != nil {
		h.logger.Error("candidate scoring failed", "error", err)
		http.Error(w, "Candidate scoring failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"scored":   scored,
	})
}

// HealthHandler handles GET /healthz.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}

	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := database.HealthCheck(ctx, h.db); err != nil {
			h.logger.Error("database health check failed", "error", err)
			response["status"] = "degraded"
			response["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response["database"] = database.Stats(h.db)
		}
	}

	writeJSON(w, h.logger, status, response)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
