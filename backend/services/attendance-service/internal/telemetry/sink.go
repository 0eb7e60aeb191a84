package telemetry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

// Sink accepts attendance events. Delivery is best-effort and at most once.
type Sink interface {
	Send(ctx context.Context, event models.Event) error
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

// Send implements Sink.
func (m MultiSink) Send(ctx context.Context, event models.Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink logging at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send implements Sink.
func (s *LogSink) Send(_ context.Context, event models.Event) error {
	s.logger.Info("attendance event",
		zap.String("event_id", event.ID),
		zap.String("worker_id", event.WorkerID),
		zap.String("session_id", event.SessionID),
		zap.String("status", string(event.Kind)),
		zap.Float64("latitude", event.Coordinate.Latitude),
		zap.Float64("longitude", event.Coordinate.Longitude),
		zap.Time("timestamp", event.Timestamp),
	)
	return nil
}

// EventStore persists events.
type EventStore interface {
	InsertEvent(ctx context.Context, event models.Event) error
}

// StoreSink writes every event to an EventStore.
type StoreSink struct {
	store EventStore
}

// NewStoreSink wraps store.
func NewStoreSink(store EventStore) *StoreSink {
	return &StoreSink{store: store}
}

// Send implements Sink.
func (s *StoreSink) Send(ctx context.Context, event models.Event) error {
	return s.store.InsertEvent(ctx, event)
}
