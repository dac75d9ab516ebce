package handlers

import (
	"errors"
	"net/http"

	"github.com/tubefeed/backend/internal/fetcher"
	"github.com/tubefeed/backend/internal/logging"
)

// AdminHandler exposes control and status endpoints for the background fetcher.
type AdminHandler struct {
	Fetcher FetchController
	Limiter RateLimiter
}

// Status handles GET /api/v1/admin/status.
func (h AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if h.Fetcher == nil {
		logging.FromContext(ctx).Error("fetch controller unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "fetcher unavailable"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, h.Fetcher.Status())
}

// Start handles POST /api/v1/admin/fetcher/start.
func (h AdminHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "admin") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	h.Fetcher.Start()
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "background fetching started"})
}

// Stop handles POST /api/v1/admin/fetcher/stop.
func (h AdminHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "admin") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	h.Fetcher.Stop()
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "background fetching stopped"})
}

// ForceFetch handles POST /api/v1/admin/fetcher/force.
func (h AdminHandler) ForceFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "admin") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	report, err := h.Fetcher.ForceFetch(ctx)
	if err != nil {
		if errors.Is(err, fetcher.ErrCycleInFlight) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "a fetch cycle is already running"})
			return
		}
		logging.FromContext(ctx).Error("force fetch", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "force fetch failed"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"message": "manual fetch completed",
		"report":  report,
	})
}
