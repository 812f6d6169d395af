package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thermoguard/thermoguard-core/internal/alert"
)

// defaultAlertHistoryLimit caps per-room alert history queries.
const defaultAlertHistoryLimit = 100

// handleActiveAlerts returns unacknowledged alerts, optionally filtered by room.
func (s *Server) handleActiveAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		alerts []alert.Alert
		err    error
	)
	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		alerts, err = s.alertStore.ListActiveByRoom(ctx, roomID)
	} else {
		alerts, err = s.alertStore.ListActive(ctx)
	}
	if err != nil {
		writeInternalError(w, "failed to list active alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

// handleAlertCounts returns per-room active alert counts by severity,
// the dashboard's summary strip.
func (s *Server) handleAlertCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.alertStore.ActiveCounts(r.Context())
	if err != nil {
		writeInternalError(w, "failed to count active alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

// handleGetAlert returns a single alert by ID.
func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.alertStore.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, alert.ErrAlertNotFound) {
			writeNotFound(w, "alert not found")
			return
		}
		writeInternalError(w, "failed to get alert")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleAcknowledgeAlert marks an alert handled by the calling operator.
// Acknowledging ends the dedup window for the alert's (room, type) pair.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	if err := s.alerts.Acknowledge(r.Context(), id, claims.Username); err != nil {
		switch {
		case errors.Is(err, alert.ErrAlertNotFound):
			writeNotFound(w, "alert not found")
		case errors.Is(err, alert.ErrAlreadyAcknowledged):
			writeConflict(w, "alert already acknowledged")
		default:
			writeInternalError(w, "failed to acknowledge alert")
		}
		return
	}

	a, err := s.alertStore.Get(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to load acknowledged alert")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleRoomAlerts returns a room's alert history, newest first.
func (s *Server) handleRoomAlerts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := defaultAlertHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alerts, err := s.alertStore.ListByRoom(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to list alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}
