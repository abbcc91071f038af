package integrations

import (
	"context"
	"time"

	"github.com/harukaze-ai/mihari/metrics"
)

// Webhook delivers raw JSON payloads to an arbitrary HTTP endpoint, for
// consumers that want to route notifications themselves.
type Webhook struct {
	httpPoster
}

// NewWebhook creates a generic webhook connector for the given URL.
func NewWebhook(url string) *Webhook {
	return &Webhook{newHTTPPoster(url)}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) TestConnection(ctx context.Context) error {
	return w.SendMessage(ctx, "mihari connection test")
}

func (w *Webhook) SendMessage(ctx context.Context, text string) error {
	return w.post(ctx, map[string]any{
		"message":   text,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SendAlert posts the alert structure as-is.
func (w *Webhook) SendAlert(ctx context.Context, alert metrics.Alert) error {
	return w.post(ctx, alert)
}
