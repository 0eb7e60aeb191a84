package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"fieldattendance/backend/services/attendance-service/internal/models"
)

// HTTPDoer is the http.Client subset used by HTTPSink.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPSink posts events to a tracking endpoint at {baseURL}/track.
type HTTPSink struct {
	baseURL string
	client  HTTPDoer
	logger  *zap.Logger
}

// NewHTTPSink returns the sink. An empty baseURL disables it.
func NewHTTPSink(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSink{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Send implements Sink.
func (s *HTTPSink) Send(ctx context.Context, event models.Event) error {
	if s.baseURL == "" {
		s.logger.Debug("tracking endpoint disabled, skipping event", zap.String("event_id", event.ID))
		return nil
	}

	data, err := json.Marshal(event.Payload())
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/track", s.baseURL), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if event.ID != "" {
		req.Header.Set("Idempotency-Key", event.ID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telemetry: track request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry: track returned status %d", resp.StatusCode)
	}
	return nil
}
