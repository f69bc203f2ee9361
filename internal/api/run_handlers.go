package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/trendwatch/trendwatch/internal/models"
)

// CreateRunRequest is the body of POST /api/runs. Omitted fields fall back to
// the configured defaults.
type CreateRunRequest struct {
	RootKeywords  []string `json:"root_keywords,omitempty"`
	MaxCandidates int      `json:"max_candidates,omitempty"`
	CostBudget    float64  `json:"cost_budget,omitempty"`
	Concurrency   int      `json:"concurrency,omitempty"`
	Locale        string   `json:"locale,omitempty"`
	Timeframe     string   `json:"timeframe,omitempty"`
}

// RunsHandler handles /api/runs: POST starts a run, GET lists recent runs.
func (h *Handler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createRun(w, r)
	case http.MethodGet:
		h.listRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if err := validateRunRequest(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := models.RunOptions{
		MaxCandidates: req.MaxCandidates,
		CostBudget:    req.CostBudget,
		Concurrency:   req.Concurrency,
		Locale:        req.Locale,
		Timeframe:     req.Timeframe,
	}

	run, err := h.orchestrator.StartRun(r.Context(), "api", req.RootKeywords, opts)
	if err != nil {
		h.logger.Error("failed to start run", "error", err)
		http.Error(w, "Failed to start run", http.StatusInternalServerError)
		return
	}

	// Execution outlives the request.
	go func() {
		if err := h.orchestrator.Execute(context.Background(), run.ID); err != nil {
			h.logger.Error("run execution failed", "run_id", run.ID, "error", err)
		}
	}()

	writeJSON(w, h.logger, http.StatusAccepted, run)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	runs, err := h.orchestrator.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// RunByIDHandler handles /api/runs/{id} and /api/runs/{id}/cancel.
func (h *Handler) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if rest == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	if id, ok := strings.CutSuffix(rest, "/cancel"); ok {
		h.cancelRun(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	run, tasks, err := h.orchestrator.GetRun(r.Context(), rest)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get run", "run_id", rest, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"run":   run,
		"tasks": tasks,
	})
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.orchestrator.Cancel(id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, h.logger, http.StatusAccepted, map[string]string{
		"run_id": id,
		"status": "cancelling",
	})
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}
