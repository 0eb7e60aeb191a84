package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"fieldattendance/backend/services/attendance-service/internal/geofence"
	"fieldattendance/backend/services/attendance-service/internal/location"
	"fieldattendance/backend/services/attendance-service/internal/models"
)

const (
	// DefaultPingInterval is the period of location updates while clocked in.
	DefaultPingInterval = 60 * time.Second
	defaultSendTimeout  = 5 * time.Second
)

var newID = uuid.NewString

// Sink receives attendance events. Send should not block for long; slow
// transports belong behind an asynchronous queue.
type Sink interface {
	Send(ctx context.Context, event models.Event) error
}

// Config describes one worker's session.
type Config struct {
	WorkerID     string
	Site         geofence.Site
	PingInterval time.Duration
	SendTimeout  time.Duration
}

// Option customises a Session.
type Option func(*Session)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Session is the clock-in/clock-out state machine of a single worker. While
// active it owns a fixed-period ticker that re-acquires the worker position
// and emits periodic updates.
type Session struct {
	cfg      Config
	provider location.Provider
	sink     Sink
	clock    clockwork.Clock
	logger   *zap.Logger

	mu           sync.Mutex
	state        State
	closed       bool
	sessionID    string
	clockedInAt  time.Time
	lastKnown    models.Coordinate
	hasLastKnown bool
	lastUpdateAt time.Time
	failedPings  int

	stop context.CancelFunc
	done chan struct{}
}

// NewSession validates cfg and returns an idle session.
func NewSession(cfg Config, provider location.Provider, sink Sink, logger *zap.Logger, opts ...Option) (*Session, error) {
	cfg.WorkerID = strings.TrimSpace(cfg.WorkerID)
	if cfg.WorkerID == "" {
		return nil, errors.New("attendance: worker id is required")
	}
	if err := cfg.Site.Location.Validate(); err != nil {
		return nil, fmt.Errorf("attendance: site location: %w", err)
	}
	if cfg.Site.RadiusMeters <= 0 {
		cfg.Site.RadiusMeters = geofence.DefaultRadiusMeters
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if provider == nil || sink == nil {
		return nil, errors.New("attendance: provider and sink are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		cfg:      cfg,
		provider: provider,
		sink:     sink,
		clock:    clockwork.NewRealClock(),
		logger:   logger.With(zap.String("worker_id", cfg.WorkerID)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WorkerID returns the owner of the session.
func (s *Session) WorkerID() string {
	return s.cfg.WorkerID
}

// Site returns the site the session is gated on.
func (s *Session) Site() geofence.Site {
	return s.cfg.Site
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the session's observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		WorkerID:    s.cfg.WorkerID,
		State:       s.state,
		SessionID:   s.sessionID,
		FailedPings: s.failedPings,
	}
	if s.state == StateActive {
		at := s.clockedInAt
		snap.ClockedInAt = &at
	}
	if s.hasLastKnown {
		c := s.lastKnown
		snap.LastKnown = &c
	}
	if !s.lastUpdateAt.IsZero() {
		at := s.lastUpdateAt
		snap.LastUpdateAt = &at
	}
	return snap
}

// ClockIn starts a session when current lies within the site radius.
func (s *Session) ClockIn(ctx context.Context, current models.Coordinate) (models.Event, error) {
	if err := current.Validate(); err != nil {
		return models.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.Event{}, ErrSessionClosed
	}
	if s.state != StateIdle {
		return models.Event{}, fmt.Errorf("%w: clock-in while %s", ErrInvalidState, s.state)
	}

	distance := s.cfg.Site.Distance(current)
	if distance > s.cfg.Site.RadiusMeters {
		return models.Event{}, &TooFarError{
			DistanceMeters: int64(math.Round(distance)),
			RadiusMeters:   s.cfg.Site.RadiusMeters,
		}
	}

	now := s.clock.Now().UTC()
	s.state = StateActive
	s.sessionID = newID()
	s.clockedInAt = now
	s.lastKnown = current
	s.hasLastKnown = true
	s.lastUpdateAt = now
	s.failedPings = 0

	event := s.newEvent(models.EventClockIn, current, now)
	s.emit(ctx, event)
	s.startTickerLocked()

	s.logger.Info("clocked in",
		zap.String("session_id", s.sessionID),
		zap.Float64("distance_m", distance),
	)
	return event, nil
}

// ClockOut ends the active session with the last known position and stops
// the periodic ticker before returning.
func (s *Session) ClockOut(ctx context.Context) (models.Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Event{}, ErrSessionClosed
	}
	if s.state != StateActive {
		state := s.state
		s.mu.Unlock()
		return models.Event{}, fmt.Errorf("%w: clock-out while %s", ErrInvalidState, state)
	}

	now := s.clock.Now().UTC()
	event := s.newEvent(models.EventClockOut, s.lastKnown, now)
	sessionID := s.sessionID
	clockedInAt := s.clockedInAt
	s.state = StateIdle
	s.sessionID = ""
	done := s.stopTickerLocked()
	s.emit(ctx, event)
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	s.logger.Info("clocked out",
		zap.String("session_id", sessionID),
		zap.Duration("worked", now.Sub(clockedInAt)),
	)
	return event, nil
}

// Close disposes the session: the ticker is stopped and later calls fail
// with ErrSessionClosed. No clock-out event is emitted. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	wasActive := s.state == StateActive
	s.state = StateIdle
	done := s.stopTickerLocked()
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	if wasActive {
		s.logger.Info("attendance session disposed while clocked in")
	}
}

func (s *Session) newEvent(kind models.EventKind, c models.Coordinate, at time.Time) models.Event {
	return models.Event{
		ID:         newID(),
		WorkerID:   s.cfg.WorkerID,
		SessionID:  s.sessionID,
		Kind:       kind,
		Coordinate: c,
		Timestamp:  at,
	}
}

// emit is called with s.mu held so events leave in transition order.
func (s *Session) emit(ctx context.Context, event models.Event) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := s.sink.Send(sendCtx, event); err != nil {
		s.logger.Warn("failed to send attendance event",
			zap.String("kind", string(event.Kind)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

func (s *Session) startTickerLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := s.clock.NewTicker(s.cfg.PingInterval)

	s.stop = cancel
	s.done = done
	go s.run(ctx, ticker, s.sessionID, done)
}

func (s *Session) stopTickerLocked() chan struct{} {
	if s.stop == nil {
		return nil
	}
	s.stop()
	done := s.done
	s.stop = nil
	s.done = nil
	return done
}

// run drives the fixed-period schedule. At most one ping is in flight; a tick
// that fires while the previous ping is still running is skipped.
func (s *Session) run(ctx context.Context, ticker clockwork.Ticker, sessionID string, done chan struct{}) {
	var (
		pings sync.WaitGroup
		busy  atomic.Bool
	)
	defer close(done)
	defer ticker.Stop()
	defer pings.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !busy.CompareAndSwap(false, true) {
				s.logger.Warn("previous location ping still running, skipping tick", zap.String("session_id", sessionID))
				continue
			}
			pings.Add(1)
			go func() {
				defer pings.Done()
				s.ping(ctx, sessionID, func() { busy.Store(false) })
			}()
		}
	}
}

// ping acquires the position and emits an update. release is invoked as soon
// as the acquisition has finished so the next tick may start.
func (s *Session) ping(ctx context.Context, sessionID string, release func()) {
	var once sync.Once
	finish := func() { once.Do(release) }
	defer finish()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("location ping panicked", zap.Any("panic", r))
		}
	}()

	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.PingInterval)
	current, err := s.provider.CurrentCoordinate(acquireCtx, s.cfg.WorkerID)
	cancel()
	if err == nil {
		err = current.Validate()
	}
	finish()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive || s.sessionID != sessionID {
		return
	}
	if err != nil {
		s.failedPings++
		s.logger.Warn("periodic location acquisition failed",
			zap.String("session_id", sessionID),
			zap.Int("failed_pings", s.failedPings),
			zap.Error(err),
		)
		return
	}

	now := s.clock.Now().UTC()
	s.lastKnown = current
	s.hasLastKnown = true
	s.lastUpdateAt = now
	s.emit(ctx, s.newEvent(models.EventPeriodicUpdate, current, now))
}
