package integrations

import (
	"context"

	"github.com/harukaze-ai/mihari/metrics"
)

// Discord delivers messages to a Discord channel webhook.
type Discord struct {
	httpPoster
}

// NewDiscord creates a Discord connector for the given webhook URL.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{newHTTPPoster(webhookURL)}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) TestConnection(ctx context.Context) error {
	return d.SendMessage(ctx, "mihari connection test")
}

func (d *Discord) SendMessage(ctx context.Context, text string) error {
	return d.post(ctx, map[string]any{"content": text})
}

// SendAlert renders the alert as an embed.
func (d *Discord) SendAlert(ctx context.Context, alert metrics.Alert) error {
	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       "Alert: " + alert.Metric,
			"description": alert.Message,
			"color":       0xE01E5A,
			"fields": []map[string]any{
				{"name": "Value", "value": alert.Value, "inline": true},
				{"name": "Threshold", "value": alert.Threshold, "inline": true},
			},
		}},
	}
	return d.post(ctx, payload)
}
