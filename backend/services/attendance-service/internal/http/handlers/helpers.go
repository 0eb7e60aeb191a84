package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"fieldattendance/backend/services/attendance-service/internal/attendance"
	"fieldattendance/backend/services/attendance-service/internal/http/middleware"
	"fieldattendance/backend/services/attendance-service/internal/location"
	"fieldattendance/backend/services/attendance-service/internal/models"
	redisstore "fieldattendance/backend/services/attendance-service/internal/redis"
	"fieldattendance/backend/services/attendance-service/internal/service"
)

// AttendanceService is what the handlers need from the service layer.
type AttendanceService interface {
	ReportLocation(workerID string, c models.Coordinate) error
	DenyLocation(workerID string) error
	ForgetLocation(workerID string) error
	ClockIn(ctx context.Context, workerID string, current *models.Coordinate) (models.Event, error)
	ClockOut(ctx context.Context, workerID string) (models.Event, error)
	Status(ctx context.Context, workerID string) (service.Status, error)
	History(ctx context.Context, workerID string, limit int) ([]models.AttendanceRecord, error)
	ActiveSessions(ctx context.Context) ([]redisstore.ActiveSession, error)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var tooFar *attendance.TooFarError
	switch {
	case errors.As(err, &tooFar):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":           "too far from site",
			"distance_meters": tooFar.DistanceMeters,
			"radius_meters":   tooFar.RadiusMeters,
		})
	case errors.Is(err, models.ErrInvalidCoordinate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrWorkerRequired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, attendance.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, location.ErrPermissionDenied):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, location.ErrAcquisitionFailed), errors.Is(err, attendance.ErrSessionClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func workerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.WorkerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing worker id")
		return "", false
	}
	return id, true
}

// coordinateBody is the optional position carried by device requests.
type coordinateBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// coordinate returns nil when neither field is set.
func (b coordinateBody) coordinate() (*models.Coordinate, error) {
	if b.Latitude == nil && b.Longitude == nil {
		return nil, nil
	}
	if b.Latitude == nil || b.Longitude == nil {
		return nil, errors.New("latitude and longitude must be sent together")
	}
	c := models.Coordinate{Latitude: *b.Latitude, Longitude: *b.Longitude}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
