package handlers

import (
	"net/http"
	"strconv"

	"fieldattendance/backend/services/attendance-service/internal/auth"
	"fieldattendance/backend/services/attendance-service/internal/http/middleware"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// NewStatusHandler returns GET /attendance/status handler.
func NewStatusHandler(svc AttendanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerID(w, r)
		if !ok {
			return
		}
		status, err := svc.Status(r.Context(), worker)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// NewHistoryHandler returns GET /attendance/history handler.
func NewHistoryHandler(svc AttendanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerID(w, r)
		if !ok {
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(parsed, maxHistoryLimit)
		}

		records, err := svc.History(r.Context(), worker, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch attendance history")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"records": records,
		})
	}
}

// NewActiveSessionsHandler returns GET /attendance/active handler.
func NewActiveSessionsHandler(svc AttendanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := svc.ActiveSessions(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch active sessions")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": sessions,
		})
	}
}

// NewHealthHandler returns GET /health handler.
func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// NewFeedHandler returns GET /attendance/feed handler. Supervisors may follow
// any worker; everyone else is pinned to their own events.
func NewFeedHandler(feed http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerID(w, r)
		if !ok {
			return
		}
		if role, _ := middleware.RoleFromContext(r.Context()); role != auth.RoleSupervisor {
			query := r.URL.Query()
			query.Set("worker_id", worker)
			r.URL.RawQuery = query.Encode()
		}
		feed.ServeHTTP(w, r)
	}
}
