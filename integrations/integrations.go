// Package integrations delivers notifications to external channels.
// Connectors are stateless adapters; the Manager fans a message or alert
// out to every registered connector, isolating failures per connector.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harukaze-ai/mihari/metrics"
)

// Connector is a delivery channel for plain notification messages.
type Connector interface {
	// Name identifies the connector in result maps ("slack", "email", ...).
	Name() string

	// TestConnection delivers a short self-test message.
	TestConnection(ctx context.Context) error

	// SendMessage delivers a notification. Blocking; bounded by the
	// connector's own transport timeout and ctx.
	SendMessage(ctx context.Context, text string) error
}

// AlertSender is the optional alert capability. Connectors that can render
// an alert natively (colors, fields) implement it; the Manager falls back
// to SendMessage with a formatted line for those that don't.
type AlertSender interface {
	SendAlert(ctx context.Context, alert metrics.Alert) error
}

// Result is the per-connector outcome of a broadcast.
type Result struct {
	Connector string `json:"connector"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// defaultTimeout bounds one webhook delivery.
const defaultTimeout = 10 * time.Second

// httpPoster is the shared webhook machinery behind the HTTP connectors.
type httpPoster struct {
	client *http.Client
	url    string
}

func newHTTPPoster(url string) httpPoster {
	return httpPoster{
		client: &http.Client{Timeout: defaultTimeout},
		url:    url,
	}
}

// post delivers a JSON payload and fails on any non-2xx response.
func (p httpPoster) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("integrations: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("integrations: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("integrations: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("integrations: delivery rejected: %s: %s", resp.Status, snippet)
	}
	return nil
}

// formatAlert renders an alert as a single notification line, used by the
// Manager's fallback path and by the plain connectors.
func formatAlert(alert metrics.Alert) string {
	return fmt.Sprintf("[ALERT] %s — value %.2f %s threshold %.2f (%s)",
		alert.Metric, alert.Value, alert.Condition, alert.Threshold,
		alert.Timestamp.Format(time.RFC3339))
}
