package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

const feedBuffer = 32

type feedClient struct {
	conn     *websocket.Conn
	send     chan []byte
	workerID string
}

// Feed streams attendance events to connected WebSocket clients. A client may
// pass ?worker_id= to follow a single worker. Slow clients lose messages
// rather than stalling the feed.
type Feed struct {
	mu           sync.RWMutex
	clients      map[*feedClient]struct{}
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewFeed builds an empty feed.
func NewFeed(writeTimeout time.Duration, logger *zap.Logger) *Feed {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Feed{
		clients:      make(map[*feedClient]struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients returns the number of connected clients.
func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Send implements Sink by broadcasting the event.
func (f *Feed) Send(_ context.Context, event models.Event) error {
	data, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for c := range f.clients {
		if c.workerID != "" && c.workerID != event.WorkerID {
			continue
		}
		select {
		case c.send <- data:
		default:
			f.logger.Debug("feed client too slow, dropping event", zap.String("remote", c.conn.RemoteAddr().String()))
		}
	}
	return nil
}

// ServeHTTP upgrades the request and registers the connection.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &feedClient{
		conn:     conn,
		send:     make(chan []byte, feedBuffer),
		workerID: r.URL.Query().Get("worker_id"),
	}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	f.logger.Info("feed client connected", zap.String("remote", conn.RemoteAddr().String()))

	go f.writeLoop(c)
	go f.readLoop(c)
}

// Close disconnects every client.
func (f *Feed) Close() {
	f.mu.RLock()
	clients := make([]*feedClient, 0, len(f.clients))
	for c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.RUnlock()

	for _, c := range clients {
		f.remove(c)
	}
}

func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.clients, c)
	close(c.send)
	f.mu.Unlock()
	_ = c.conn.Close()
}

func (f *Feed) writeLoop(c *feedClient) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			f.logger.Debug("feed write failed", zap.Error(err))
			f.remove(c)
			return
		}
	}
}

// readLoop only exists to notice the peer going away.
func (f *Feed) readLoop(c *feedClient) {
	defer f.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
