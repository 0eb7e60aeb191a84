package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

type report struct {
	coordinate models.Coordinate
	receivedAt time.Time
	denied     bool
}

// ReportedStore keeps the latest position pushed by each worker's device and
// serves it as the worker's current coordinate while it is fresh.
type ReportedStore struct {
	mu      sync.RWMutex
	reports map[string]report
	maxAge  time.Duration
	clock   clockwork.Clock
}

// NewReportedStore returns a store treating reports older than maxAge as stale.
func NewReportedStore(maxAge time.Duration, clock clockwork.Clock) *ReportedStore {
	if maxAge <= 0 {
		maxAge = 2 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReportedStore{
		reports: make(map[string]report),
		maxAge:  maxAge,
		clock:   clock,
	}
}

// Report records a fresh device position for the worker.
func (s *ReportedStore) Report(workerID string, c models.Coordinate) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[workerID] = report{coordinate: c, receivedAt: s.clock.Now()}
	return nil
}

// Deny records that the worker's device has revoked location permission.
func (s *ReportedStore) Deny(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[workerID] = report{receivedAt: s.clock.Now(), denied: true}
}

// Forget drops everything known about the worker.
func (s *ReportedStore) Forget(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, workerID)
}

// CurrentCoordinate implements Provider.
func (s *ReportedStore) CurrentCoordinate(ctx context.Context, workerID string) (models.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: %v", ErrAcquisitionFailed, err)
	}

	s.mu.RLock()
	r, ok := s.reports[workerID]
	s.mu.RUnlock()

	switch {
	case !ok:
		return models.Coordinate{}, fmt.Errorf("%w: no position reported", ErrAcquisitionFailed)
	case r.denied:
		return models.Coordinate{}, ErrPermissionDenied
	case s.clock.Since(r.receivedAt) > s.maxAge:
		return models.Coordinate{}, fmt.Errorf("%w: last position is %s old", ErrAcquisitionFailed, s.clock.Since(r.receivedAt).Round(time.Second))
	}
	return r.coordinate, nil
}
