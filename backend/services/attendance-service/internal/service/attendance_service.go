package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"fieldattendance/backend/services/attendance-service/internal/attendance"
	"fieldattendance/backend/services/attendance-service/internal/geofence"
	"fieldattendance/backend/services/attendance-service/internal/location"
	"fieldattendance/backend/services/attendance-service/internal/models"
	redisstore "fieldattendance/backend/services/attendance-service/internal/redis"
)

// ErrWorkerRequired is returned when no worker id is supplied.
var ErrWorkerRequired = errors.New("worker id is required")

// LocationSource is both the provider sessions ping and the inbox devices report to.
type LocationSource interface {
	location.Provider
	Report(workerID string, c models.Coordinate) error
	Deny(workerID string)
	Forget(workerID string)
}

// RecordStore persists clock-in/clock-out pairs.
type RecordStore interface {
	StartSession(ctx context.Context, record *models.AttendanceRecord) error
	CompleteSession(ctx context.Context, sessionID string, at time.Time, c models.Coordinate) error
	ListByWorker(ctx context.Context, workerID string, limit int) ([]models.AttendanceRecord, error)
}

// ActiveStore caches who is currently clocked in.
type ActiveStore interface {
	Save(ctx context.Context, session redisstore.ActiveSession) error
	Delete(ctx context.Context, workerID string) error
	List(ctx context.Context) ([]redisstore.ActiveSession, error)
}

// Options configures AttendanceService.
type Options struct {
	Site         geofence.Site
	PingInterval time.Duration
	SendTimeout  time.Duration
	Clock        clockwork.Clock
}

// Status is the worker-facing view of a session.
type Status struct {
	attendance.Snapshot
	Site           geofence.Site `json:"site"`
	DistanceMeters *float64      `json:"distance_meters,omitempty"`
	WithinRadius   *bool         `json:"within_radius,omitempty"`
}

// AttendanceService owns one attendance session per worker and records
// their transitions.
type AttendanceService struct {
	opts      Options
	locations LocationSource
	sink      attendance.Sink
	records   RecordStore
	active    ActiveStore
	logger    *zap.Logger

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
}

// worker pairs a session with the lock that orders its transitions
// together with their record and cache writes.
type worker struct {
	mu      sync.Mutex
	session *attendance.Session
}

// NewAttendanceService builds service.
func NewAttendanceService(
	opts Options,
	locations LocationSource,
	sink attendance.Sink,
	records RecordStore,
	active ActiveStore,
	logger *zap.Logger,
) *AttendanceService {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Site.RadiusMeters <= 0 {
		opts.Site.RadiusMeters = geofence.DefaultRadiusMeters
	}
	return &AttendanceService{
		opts:      opts,
		locations: locations,
		sink:      sink,
		records:   records,
		active:    active,
		logger:    logger,
		workers:   make(map[string]*worker),
	}
}

// Site returns the configured site.
func (s *AttendanceService) Site() geofence.Site {
	return s.opts.Site
}

// ReportLocation stores a device position for later pings.
func (s *AttendanceService) ReportLocation(workerID string, c models.Coordinate) error {
	workerID, err := normalizeWorker(workerID)
	if err != nil {
		return err
	}
	return s.locations.Report(workerID, c)
}

// DenyLocation records that a device revoked location permission.
func (s *AttendanceService) DenyLocation(workerID string) error {
	workerID, err := normalizeWorker(workerID)
	if err != nil {
		return err
	}
	s.locations.Deny(workerID)
	return nil
}

// ForgetLocation drops the worker's reported position.
func (s *AttendanceService) ForgetLocation(workerID string) error {
	workerID, err := normalizeWorker(workerID)
	if err != nil {
		return err
	}
	s.locations.Forget(workerID)
	return nil
}

// ClockIn clocks the worker in at current, or at the latest reported
// position when current is nil.
func (s *AttendanceService) ClockIn(ctx context.Context, workerID string, current *models.Coordinate) (models.Event, error) {
	workerID, err := normalizeWorker(workerID)
	if err != nil {
		return models.Event{}, err
	}

	var coord models.Coordinate
	if current != nil {
		if err := s.locations.Report(workerID, *current); err != nil {
			return models.Event{}, err
		}
		coord = *current
	} else {
		coord, err = s.locations.CurrentCoordinate(ctx, workerID)
		if err != nil {
			return models.Event{}, err
		}
	}

	w, err := s.worker(workerID)
	if err != nil {
		return models.Event{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	event, err := w.session.ClockIn(ctx, coord)
	if err != nil {
		return models.Event{}, err
	}

	if s.records != nil {
		err := s.records.StartSession(ctx, &models.AttendanceRecord{
			SessionID: event.SessionID,
			WorkerID:  workerID,
			SiteName:  s.opts.Site.Name,
			ClockInAt: event.Timestamp,
			ClockIn:   event.Coordinate,
		})
		if err != nil {
			s.logger.Warn("failed to persist clock-in", zap.String("session_id", event.SessionID), zap.Error(err))
		}
	}
	if s.active != nil {
		err := s.active.Save(ctx, redisstore.ActiveSession{
			SessionID:   event.SessionID,
			WorkerID:    workerID,
			SiteName:    s.opts.Site.Name,
			ClockedInAt: event.Timestamp,
			Location:    event.Coordinate,
		})
		if err != nil {
			s.logger.Warn("failed to cache active session", zap.Error(err))
		}
	}
	return event, nil
}

// ClockOut clocks the worker out.
func (s *AttendanceService) ClockOut(ctx context.Context, workerID string) (models.Event, error) {
	workerID, err := normalizeWorker(workerID)
	if err != nil {
		return models.Event{}, err
	}

	s.mu.Lock()
	w, ok := s.workers[workerID]
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return models.Event{}, attendance.ErrSessionClosed
	}
	if !ok {
		return models.Event{}, fmt.Errorf("%w: clock-out while %s", attendance.ErrInvalidState, attendance.StateIdle)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	event, err := w.session.ClockOut(ctx)
	if err != nil {
		return models.Event{}, err
	}

	if s.records != nil {
		if err := s.records.CompleteSession(ctx, event.SessionID, event.Timestamp, event.Coordinate); err != nil {
			s.logger.Warn("failed to persist clock-out", zap.String("session_id", event.SessionID), zap.Error(err))
		}
	}
	if s.active != nil {
		if err := s.active.Delete(ctx, workerID); err != nil {
			s.logger.Warn("failed to delete active session cache", zap.Error(err))
		}
	}
	return event, nil
}

// Status returns the worker's session view and distance from the site.
// Distance is measured from the freshest reported position; while clocked
// in, the last pinged position stands in when no fresh report exists.
func (s *AttendanceService) Status(ctx context.Context, workerID string) (Status, error) {
	workerID, err := normalizeWorker(workerID)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	w, ok := s.workers[workerID]
	s.mu.Unlock()

	status := Status{
		Snapshot: attendance.Snapshot{WorkerID: workerID, State: attendance.StateIdle},
		Site:     s.opts.Site,
	}
	if ok {
		status.Snapshot = w.session.Snapshot()
	}

	var from *models.Coordinate
	if current, err := s.locations.CurrentCoordinate(ctx, workerID); err == nil {
		from = &current
	} else if status.State == attendance.StateActive {
		from = status.LastKnown
	}
	if from != nil {
		d := s.opts.Site.Distance(*from)
		within := d <= s.opts.Site.RadiusMeters
		status.DistanceMeters = &d
		status.WithinRadius = &within
	}
	return status, nil
}

// History returns the worker's attendance records, newest first.
func (s *AttendanceService) History(ctx context.Context, workerID string, limit int) ([]models.AttendanceRecord, error) {
	workerID, err := normalizeWorker(workerID)
	if err != nil {
		return nil, err
	}
	if s.records == nil {
		return []models.AttendanceRecord{}, nil
	}
	records, err := s.records.ListByWorker(ctx, workerID, limit)
	if err != nil {
		return nil, err
	}
	now := s.opts.Clock.Now()
	for i := range records {
		records[i] = records[i].WithDuration(now)
	}
	return records, nil
}

// ActiveSessions lists every clocked-in worker from the cache.
func (s *AttendanceService) ActiveSessions(ctx context.Context) ([]redisstore.ActiveSession, error) {
	if s.active == nil {
		return nil, nil
	}
	return s.active.List(ctx)
}

// Shutdown disposes every session, stopping their tickers.
func (s *AttendanceService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*attendance.Session, 0, len(s.workers))
	for _, w := range s.workers {
		sessions = append(sessions, w.session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

func (s *AttendanceService) worker(workerID string) (*worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, attendance.ErrSessionClosed
	}
	if w, ok := s.workers[workerID]; ok {
		return w, nil
	}

	session, err := attendance.NewSession(attendance.Config{
		WorkerID:     workerID,
		Site:         s.opts.Site,
		PingInterval: s.opts.PingInterval,
		SendTimeout:  s.opts.SendTimeout,
	}, s.locations, s.sink, s.logger, attendance.WithClock(s.opts.Clock))
	if err != nil {
		return nil, err
	}
	w := &worker{session: session}
	s.workers[workerID] = w
	return w, nil
}

func normalizeWorker(workerID string) (string, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return "", ErrWorkerRequired
	}
	return workerID, nil
}
