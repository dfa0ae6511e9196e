// Package notifier delivers position lifecycle events to a downstream HTTP endpoint.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"futuresHook/internal/domain"
	"futuresHook/internal/ports"
)

const defaultTimeout = 5 * time.Second

// Config holds configuration for the HTTP sink.
type Config struct {
	URL     string
	Timeout time.Duration
	Logger  ports.Logger
}

// updatePayload is the wire format expected by the updates endpoint.
type updatePayload struct {
	Symbol       string `json:"symbol"`
	PositionType string `json:"positionType"`
	DBPath       string `json:"dbPath"`
}

// HTTPSink implements ports.NotificationSink with a single JSON POST per event.
// It never retries; delivery is best effort.
type HTTPSink struct {
	url        string
	httpClient *http.Client
	logger     ports.Logger
}

// New creates an HTTP sink. An empty URL yields a sink that drops every event.
func New(cfg Config) (ports.NotificationSink, error) {
	if cfg.URL == "" {
		return ports.NopSink{}, nil
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for HTTP notifier")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTPSink{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}, nil
}

// Notify posts event. Only HTTP 200 counts as delivered.
func (s *HTTPSink) Notify(ctx context.Context, event domain.LifecycleEvent) error {
	body, err := json.Marshal(updatePayload{
		Symbol:       event.Symbol,
		PositionType: string(event.Phase),
		DBPath:       event.CorrelationID,
	})
	if err != nil {
		return fmt.Errorf("encoding event: %w: %w", ports.ErrNotificationFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w: %w", ports.ErrNotificationFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w: %w", ports.ErrNotificationFailure, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "failed to close response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ports.ErrNotificationFailure, resp.StatusCode)
	}

	s.logger.Debug(ctx, "Lifecycle event forwarded", map[string]interface{}{"symbol": event.Symbol, "phase": event.Phase})
	return nil
}
