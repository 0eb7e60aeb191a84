package location

import (
	"context"
	"errors"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

var (
	// ErrPermissionDenied means the device refused to share its position.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrAcquisitionFailed means no usable position could be obtained.
	ErrAcquisitionFailed = errors.New("location acquisition failed")
)

// Provider acquires the current position of a worker. Every call may fail.
type Provider interface {
	CurrentCoordinate(ctx context.Context, workerID string) (models.Coordinate, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, workerID string) (models.Coordinate, error)

// CurrentCoordinate calls f.
func (f ProviderFunc) CurrentCoordinate(ctx context.Context, workerID string) (models.Coordinate, error) {
	return f(ctx, workerID)
}
