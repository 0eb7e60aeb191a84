package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// NewClockInHandler returns POST /attendance/clock-in handler. The body may
// carry the device position; without it the latest reported one is used.
func NewClockInHandler(svc AttendanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerID(w, r)
		if !ok {
			return
		}

		var req coordinateBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		coord, err := req.coordinate()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		event, err := svc.ClockIn(r.Context(), worker, coord)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, event)
	}
}

// NewClockOutHandler returns POST /attendance/clock-out handler.
func NewClockOutHandler(svc AttendanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerID(w, r)
		if !ok {
			return
		}

		event, err := svc.ClockOut(r.Context(), worker)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, event)
	}
}
