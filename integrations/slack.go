package integrations

import (
	"context"

	"github.com/harukaze-ai/mihari/metrics"
)

// Slack delivers messages to a Slack incoming webhook.
type Slack struct {
	httpPoster
}

// NewSlack creates a Slack connector for the given incoming-webhook URL.
func NewSlack(webhookURL string) *Slack {
	return &Slack{newHTTPPoster(webhookURL)}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) TestConnection(ctx context.Context) error {
	return s.SendMessage(ctx, "mihari connection test")
}

func (s *Slack) SendMessage(ctx context.Context, text string) error {
	return s.post(ctx, map[string]any{"text": text})
}

// SendAlert renders the alert as a colored attachment.
func (s *Slack) SendAlert(ctx context.Context, alert metrics.Alert) error {
	payload := map[string]any{
		"text": formatAlert(alert),
		"attachments": []map[string]any{{
			"color": "danger",
			"fields": []map[string]any{
				{"title": "Metric", "value": alert.Metric, "short": true},
				{"title": "Value", "value": alert.Value, "short": true},
				{"title": "Threshold", "value": alert.Threshold, "short": true},
				{"title": "Condition", "value": string(alert.Condition), "short": true},
			},
		}},
	}
	return s.post(ctx, payload)
}
