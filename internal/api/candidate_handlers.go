package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/trendwatch/trendwatch/internal/models"
)

// CandidatesHandler handles GET /api/candidates with optional status filter.
func (h *Handler) CandidatesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := models.CandidateStatus(r.URL.Query().Get("status"))
	if status != "" && !validCandidateStatus(status) {
		http.Error(w, "Invalid status filter", http.StatusBadRequest)
		return
	}

	list, err := h.manager.List(r.Context(), status, parseLimit(r, 100))
	if err != nil {
		h.logger.Error("failed to list candidates", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"candidates": list,
		"count":      len(list),
	})
}

// RejectCandidateRequest is the body of POST /api/candidates/{id}/reject.
type RejectCandidateRequest struct {
	Reason string `json:"reason"`
}

// CandidateByIDHandler handles /api/candidates/{id}/reject.
func (h *Handler) CandidateByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/candidates/")
	id, ok := strings.CutSuffix(rest, "/reject")
	if !ok || id == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RejectCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		http.Error(w, "Rejection reason is required", http.StatusBadRequest)
		return
	}

	candidate, err := h.manager.Reject(r.Context(), id, req.Reason)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			http.Error(w, "Candidate not found", http.StatusNotFound)
			return
		}
		if strings.Contains(err.Error(), "cannot reject") {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("failed to reject candidate", "id", id, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, candidate)
}

func validCandidateStatus(status models.CandidateStatus) bool {
	switch status {
	case models.CandidateStatusPending, models.CandidateStatusApproved,
		models.CandidateStatusRejected, models.CandidateStatusExpired:
		return true
	}
	return false
}
