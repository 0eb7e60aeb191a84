package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

func testEvent(kind models.EventKind) models.Event {
	return models.Event{
		ID:         "evt-1",
		WorkerID:   "worker-7",
		SessionID:  "sess-1",
		Kind:       kind,
		Coordinate: models.Coordinate{Latitude: 17.4221891, Longitude: 78.3819498},
		Timestamp:  time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC),
	}
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.Event
	err    error
	block  chan struct{}
}

func (f *fakeSink) Send(_ context.Context, event models.Event) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeSink) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.ID)
	}
	return out
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &fakeSink{}
	boom := errors.New("boom")
	failing := &fakeSink{err: boom}

	err := MultiSink{ok, nil, failing}.Send(context.Background(), testEvent(models.EventClockIn))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
	if len(ok.ids()) != 1 || len(failing.ids()) != 1 {
		t.Fatalf("every sink must receive the event")
	}
}

func TestLogSinkWritesEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	if err := sink.Send(context.Background(), testEvent(models.EventPeriodicUpdate)); err != nil {
		t.Fatalf("send: %v", err)
	}
	entries := logs.FilterMessage("attendance event").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != "update" {
		t.Fatalf("expected status update, got %v", got)
	}
}

type fakeStore struct {
	events []models.Event
}

func (f *fakeStore) InsertEvent(_ context.Context, event models.Event) error {
	f.events = append(f.events, event)
	return nil
}

func TestStoreSinkPersists(t *testing.T) {
	store := &fakeStore{}
	if err := NewStoreSink(store).Send(context.Background(), testEvent(models.EventClockOut)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(store.events) != 1 || store.events[0].Kind != models.EventClockOut {
		t.Fatalf("unexpected stored events %+v", store.events)
	}
}

func TestAsyncSinkPreservesOrder(t *testing.T) {
	next := &fakeSink{}
	sink := NewAsyncSink(next, 16, time.Second, zaptest.NewLogger(t))

	for _, id := range []string{"a", "b", "c", "d"} {
		ev := testEvent(models.EventPeriodicUpdate)
		ev.ID = id
		if err := sink.Send(context.Background(), ev); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}
	sink.Close()

	if got := strings.Join(next.ids(), ""); got != "abcd" {
		t.Fatalf("expected ordered delivery, got %q", got)
	}
	if err := sink.Send(context.Background(), testEvent(models.EventClockIn)); !errors.Is(err, ErrSinkClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	next := &fakeSink{block: make(chan struct{})}
	sink := NewAsyncSink(next, 1, time.Second, zaptest.NewLogger(t))

	var full bool
	for i := 0; i < 5; i++ {
		if err := sink.Send(context.Background(), testEvent(models.EventPeriodicUpdate)); errors.Is(err, ErrQueueFull) {
			full = true
		}
	}
	if !full {
		t.Fatalf("expected queue to overflow")
	}
	if sink.Dropped() == 0 {
		t.Fatalf("expected dropped counter to increase")
	}

	close(next.block)
	sink.Close()
}

func TestAsyncSinkCountsFailures(t *testing.T) {
	next := &fakeSink{err: errors.New("down")}
	sink := NewAsyncSink(next, 4, time.Second, zaptest.NewLogger(t))

	if err := sink.Send(context.Background(), testEvent(models.EventClockIn)); err != nil {
		t.Fatalf("send must not surface downstream errors: %v", err)
	}
	sink.Close()

	if sink.Failed() != 1 {
		t.Fatalf("expected one failure, got %d", sink.Failed())
	}
}

func TestHTTPSinkPostsTrackPayload(t *testing.T) {
	var (
		mu      sync.Mutex
		payload models.TrackPayload
		path    string
		key     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		key = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL+"/", time.Second, zaptest.NewLogger(t))
	if err := sink.Send(context.Background(), testEvent(models.EventClockIn)); err != nil {
		t.Fatalf("send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/track" {
		t.Fatalf("expected /track, got %s", path)
	}
	if key != "evt-1" {
		t.Fatalf("expected idempotency key evt-1, got %q", key)
	}
	if payload.Status != models.EventClockIn || payload.Latitude != 17.4221891 || payload.Longitude != 78.3819498 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Timestamp != "2025-06-16T09:00:00Z" {
		t.Fatalf("expected ISO-8601 timestamp, got %s", payload.Timestamp)
	}
}

func TestHTTPSinkReportsNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, time.Second, zaptest.NewLogger(t))
	if err := sink.Send(context.Background(), testEvent(models.EventClockIn)); err == nil {
		t.Fatalf("expected error for 503")
	}
}

func TestHTTPSinkDisabled(t *testing.T) {
	sink := NewHTTPSink("", time.Second, zaptest.NewLogger(t))
	if err := sink.Send(context.Background(), testEvent(models.EventClockIn)); err != nil {
		t.Fatalf("disabled sink must be a no-op, got %v", err)
	}
}

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	return f.err
}

func TestAMQPSinkPublishes(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAMQPSink(pub, "attendance_topic")

	if err := sink.Send(context.Background(), testEvent(models.EventClockOut)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if pub.exchange != "attendance_topic" {
		t.Fatalf("unexpected exchange %s", pub.exchange)
	}
	if pub.key != "attendance.clockout.worker-7" {
		t.Fatalf("unexpected routing key %s", pub.key)
	}
	if pub.msg.MessageId != "evt-1" || pub.msg.ContentType != "application/json" {
		t.Fatalf("unexpected publishing %+v", pub.msg)
	}
	var payload models.TrackPayload
	if err := json.Unmarshal(pub.msg.Body, &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Status != models.EventClockOut {
		t.Fatalf("unexpected body status %s", payload.Status)
	}
}

func TestAMQPSinkWrapsPublishError(t *testing.T) {
	boom := errors.New("channel closed")
	sink := NewAMQPSink(&fakePublisher{err: boom}, "x")
	if err := sink.Send(context.Background(), testEvent(models.EventClockIn)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestFeedBroadcastsToClients(t *testing.T) {
	feed := NewFeed(time.Second, zap.NewNop())
	srv := httptest.NewServer(feed)
	defer srv.Close()
	defer feed.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	all, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer all.Close()
	other, _, err := websocket.DefaultDialer.Dial(wsURL+"?worker_id=someone-else", nil)
	if err != nil {
		t.Fatalf("dial filtered: %v", err)
	}
	defer other.Close()

	waitFor(t, time.Second, func() bool { return feed.Clients() == 2 })

	if err := feed.Send(context.Background(), testEvent(models.EventClockIn)); err != nil {
		t.Fatalf("send: %v", err)
	}

	_ = all.SetReadDeadline(time.Now().Add(time.Second))
	var payload models.TrackPayload
	if err := all.ReadJSON(&payload); err != nil {
		t.Fatalf("read: %v", err)
	}
	if payload.WorkerID != "worker-7" || payload.Status != models.EventClockIn {
		t.Fatalf("unexpected payload %+v", payload)
	}

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := other.ReadJSON(&payload); err == nil {
		t.Fatalf("filtered client must not receive other workers' events")
	}

	all.Close()
	waitFor(t, time.Second, func() bool { return feed.Clients() <= 1 })
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
