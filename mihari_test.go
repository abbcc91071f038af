package mihari

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harukaze-ai/mihari/eventlog"
	"github.com/harukaze-ai/mihari/integrations"
	"github.com/harukaze-ai/mihari/metrics"
	"github.com/harukaze-ai/mihari/reasoning"
)

type stubSampler struct{ sample metrics.SystemSample }

func (s stubSampler) Sample() (metrics.SystemSample, error) { return s.sample, nil }

type captureConnector struct {
	alerts []metrics.Alert
}

func (c *captureConnector) Name() string                              { return "capture" }
func (c *captureConnector) TestConnection(ctx context.Context) error  { return nil }
func (c *captureConnector) SendMessage(ctx context.Context, _ string) error { return nil }
func (c *captureConnector) SendAlert(ctx context.Context, a metrics.Alert) error {
	c.alerts = append(c.alerts, a)
	return nil
}

func newTestHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	t.Setenv("MIHARI_CONSOLE_LOG", "false")
	t.Setenv("MIHARI_FILE_LOG", "false")
	t.Setenv("MIHARI_JSON_LOG", "false")
	t.Setenv("MIHARI_REASONING_LOG", "false")

	opts = append([]Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithSampler(stubSampler{}),
	}, opts...)
	hub, err := New(opts...)
	require.NoError(t, err)
	return hub
}

func TestHubStartAndShutdown(t *testing.T) {
	hub := newTestHub(t, WithSampler(stubSampler{
		sample: metrics.SystemSample{CPUPercent: 33},
	}), WithCollectInterval(time.Hour))

	hub.Start(context.Background())

	require.Eventually(t, func() bool {
		_, ok := hub.Metrics().Stats(metrics.MetricCPUPercent, time.Minute)
		return ok
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))
}

func TestHubAlertRuleDeliversEverywhere(t *testing.T) {
	connector := &captureConnector{}
	hub := newTestHub(t, WithConnector(connector))

	var cbFired int
	_, err := hub.AddAlertRule("queue.depth", 100, metrics.CondGreaterThan, time.Hour,
		func(metrics.Alert) { cbFired++ })
	require.NoError(t, err)

	hub.Metrics().Record("queue.depth", 250, nil)
	hub.Alerts().Evaluate()

	// Alert event in the log.
	fired := hub.Events().Events(eventlog.Filter{Type: eventlog.EventAlertFired})
	require.Len(t, fired, 1)
	assert.Equal(t, eventlog.LevelWarning, fired[0].Level)
	assert.Equal(t, "queue.depth", fired[0].Metadata["metric"])

	// Alert delivered through the connector, then the callback.
	require.Len(t, connector.alerts, 1)
	assert.Equal(t, 250.0, connector.alerts[0].Value)
	assert.Equal(t, 1, cbFired)
}

func TestHubReason(t *testing.T) {
	hub := newTestHub(t)

	err := hub.Reason(context.Background(), "agent-1", "summarise inbox", func(s *reasoning.Session) error {
		s.Think("three unread threads").Conclude("reply to the oldest first")
		return nil
	})
	require.NoError(t, err)

	chains := hub.Events().Events(eventlog.Filter{Type: eventlog.EventReasoningChain})
	require.Len(t, chains, 1)

	// The monitor reported the session summary into the metric store.
	steps := hub.Metrics().Points("agent.reasoning_steps")
	require.Len(t, steps, 1)
	assert.Equal(t, 2.0, steps[0].Value)
}

func TestHubSQLiteEventStore(t *testing.T) {
	dir := t.TempDir()
	hub := newTestHub(t, WithSQLitePath(dir+"/events.db"))
	defer hub.Shutdown(context.Background())

	require.NotNil(t, hub.EventStore())
	hub.Events().LogEvent("agent-1", eventlog.EventToolCall, "fetch page")

	stored, err := hub.EventStore().RecentEvents("agent-1", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "fetch page", stored[0].Message)
}

func TestHubConfigConnectors(t *testing.T) {
	t.Setenv("MIHARI_SLACK_WEBHOOK_URL", "https://hooks.slack.example/T000")
	t.Setenv("MIHARI_SMTP_HOST", "smtp.example.com")
	t.Setenv("MIHARI_SMTP_TO", "ops@example.com, oncall@example.com")

	hub := newTestHub(t)

	assert.Equal(t, []string{"email", "slack"}, hub.Integrations().Names())
	_, ok := hub.Integrations().Get("slack")
	assert.True(t, ok)
}

var _ integrations.AlertSender = (*captureConnector)(nil)
