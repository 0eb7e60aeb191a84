package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type locationRequest struct {
	coordinateBody
	Permission string `json:"permission"`
}

// NewReportLocationHandler returns POST /attendance/location handler.
func NewReportLocationHandler(svc AttendanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerID(w, r)
		if !ok {
			return
		}

		var req locationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}

		if strings.EqualFold(req.Permission, "denied") {
			if err := svc.DenyLocation(worker); err != nil {
				writeServiceError(w, err)
				return
			}
			logger.Info("location permission denied by device", zap.String("worker_id", worker))
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "denied"})
			return
		}

		coord, err := req.coordinate()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if coord == nil {
			writeError(w, http.StatusBadRequest, "latitude and longitude are required")
			return
		}
		if err := svc.ReportLocation(worker, *coord); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// NewForgetLocationHandler returns DELETE /attendance/location handler.
func NewForgetLocationHandler(svc AttendanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		worker, ok := workerID(w, r)
		if !ok {
			return
		}
		if err := svc.ForgetLocation(worker); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
