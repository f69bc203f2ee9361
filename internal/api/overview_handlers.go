package api

import (
	"net/http"
)

// OverviewHandler handles GET /api/overview: the hotlist plus recent spike
// alerts for the requested timeframe.
func (h *Handler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = h.cfg.Runs.Timeframe
	}

	overview, err := h.aggregator.Overview(r.Context(), timeframe)
	if err != nil {
		h.logger.Error("failed to build overview", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, overview)
}
