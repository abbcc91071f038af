package integrations

import (
	"context"

	"github.com/harukaze-ai/mihari/metrics"
)

// Teams delivers messages to a Microsoft Teams incoming webhook as
// MessageCard payloads.
type Teams struct {
	httpPoster
}

// NewTeams creates a Teams connector for the given webhook URL.
func NewTeams(webhookURL string) *Teams {
	return &Teams{newHTTPPoster(webhookURL)}
}

func (t *Teams) Name() string { return "teams" }

func (t *Teams) TestConnection(ctx context.Context) error {
	return t.SendMessage(ctx, "mihari connection test")
}

func (t *Teams) SendMessage(ctx context.Context, text string) error {
	return t.post(ctx, map[string]any{
		"@type":    "MessageCard",
		"@context": "http://schema.org/extensions",
		"text":     text,
	})
}

// SendAlert renders the alert as a red-themed MessageCard.
func (t *Teams) SendAlert(ctx context.Context, alert metrics.Alert) error {
	return t.post(ctx, map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": "CC0000",
		"title":      "Alert: " + alert.Metric,
		"text":       alert.Message,
	})
}
