package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

var (
	ErrQueueFull  = errors.New("telemetry: queue full, event dropped")
	ErrSinkClosed = errors.New("telemetry: sink closed")
)

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 5 * time.Second
)

// AsyncSink queues events and delivers them to next from a single worker
// goroutine, so Send never waits on the network and events keep their order.
type AsyncSink struct {
	next        Sink
	queue       chan models.Event
	sendTimeout time.Duration
	logger      *zap.Logger

	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewAsyncSink starts the delivery worker.
func NewAsyncSink(next Sink, queueSize int, sendTimeout time.Duration, logger *zap.Logger) *AsyncSink {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	a := &AsyncSink{
		next:        next,
		queue:       make(chan models.Event, queueSize),
		sendTimeout: sendTimeout,
		logger:      logger,
		done:        make(chan struct{}),
	}
	go a.run()
	return a
}

// Send enqueues event without blocking.
func (a *AsyncSink) Send(_ context.Context, event models.Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrSinkClosed
	}
	select {
	case a.queue <- event:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped returns the number of events rejected because the queue was full.
func (a *AsyncSink) Dropped() int64 {
	return a.dropped.Load()
}

// Failed returns the number of events the downstream sink rejected.
func (a *AsyncSink) Failed() int64 {
	return a.failed.Load()
}

// Close stops accepting events, drains the queue and waits for the worker.
func (a *AsyncSink) Close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	<-a.done
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for event := range a.queue {
		a.deliver(event)
	}
}

func (a *AsyncSink) deliver(event models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), a.sendTimeout)
	defer cancel()

	if err := a.next.Send(ctx, event); err != nil {
		a.failed.Add(1)
		a.logger.Warn("telemetry delivery failed",
			zap.String("event_id", event.ID),
			zap.String("status", string(event.Kind)),
			zap.Error(err),
		)
	}
}
