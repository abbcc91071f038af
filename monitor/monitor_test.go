package monitor

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harukaze-ai/mihari/eventlog"
	"github.com/harukaze-ai/mihari/metrics"
)

func newTestMonitor(t *testing.T) (*Monitor, *metrics.Store, *eventlog.Log) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	store := metrics.NewStore(0)
	log := eventlog.NewLog(logger, 0)
	return New(store, log, nil, logger), store, log
}

func TestAgentLifecycle(t *testing.T) {
	m, store, log := newTestMonitor(t)

	assert.Equal(t, StatusUnknown, m.AgentStatus("agent-1"))

	m.TrackAgentStart("agent-1")
	assert.Equal(t, StatusRunning, m.AgentStatus("agent-1"))

	m.TrackAgentStop("agent-1")
	assert.Equal(t, StatusStopped, m.AgentStatus("agent-1"))

	events := log.Events(eventlog.Filter{AgentID: "agent-1"})
	require.Len(t, events, 2)
	assert.Equal(t, eventlog.EventAgentStopped, events[0].Type)
	assert.Equal(t, eventlog.EventAgentStarted, events[1].Type)

	points := store.Points(MetricAgentRuntime)
	require.Len(t, points, 1)
	assert.Equal(t, "agent-1", points[0].Labels["agent_id"])
}

func TestStopWithoutStartRecordsNoRuntime(t *testing.T) {
	m, store, log := newTestMonitor(t)

	m.TrackAgentStop("agent-1")

	assert.Equal(t, StatusStopped, m.AgentStatus("agent-1"))
	assert.Empty(t, store.Points(MetricAgentRuntime))
	assert.Len(t, log.Events(eventlog.Filter{Type: eventlog.EventAgentStopped}), 1)
}

func TestTrackTaskDuration(t *testing.T) {
	m, store, _ := newTestMonitor(t)

	m.TrackTaskDuration("agent-1", "crawl", 120*time.Millisecond)
	m.TrackTaskDuration("agent-1", "crawl", 80*time.Millisecond)

	points := store.Points(MetricTaskDuration)
	require.Len(t, points, 2)
	assert.Equal(t, 120.0, points[0].Value)
	assert.Equal(t, "crawl", points[0].Labels["task"])
}

func TestTrackError(t *testing.T) {
	m, store, _ := newTestMonitor(t)

	m.TrackError("agent-1", "timeout")
	m.TrackError("agent-1", "timeout")
	m.TrackError("agent-1", "parse")

	points := store.Points(MetricErrors)
	require.Len(t, points, 3)
	assert.Equal(t, "timeout", points[0].Labels["error_type"])

	d := m.AgentDashboard("agent-1")
	assert.Equal(t, 3, d.TotalErrors)
	assert.Equal(t, 2, d.ErrorsByType["timeout"])
	assert.Equal(t, 1, d.ErrorsByType["parse"])
}

func TestTrackLLMCall(t *testing.T) {
	m, store, log := newTestMonitor(t)

	m.TrackLLMCall("agent-1", LLMCall{
		Model:          "claude-sonnet",
		TokensUsed:     1250,
		Duration:       900 * time.Millisecond,
		ReasoningSteps: 4,
	})

	tokens := store.Points(MetricLLMTokens)
	require.Len(t, tokens, 1)
	assert.Equal(t, 1250.0, tokens[0].Value)
	assert.Equal(t, "claude-sonnet", tokens[0].Labels["model"])

	durations := store.Points(MetricLLMDuration)
	require.Len(t, durations, 1)
	assert.Equal(t, 900.0, durations[0].Value)

	events := log.Events(eventlog.Filter{Type: eventlog.EventLLMCall})
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "claude-sonnet")
	assert.Contains(t, events[0].Message, "1250 tokens")
	assert.Equal(t, 4, events[0].Metadata["reasoning_steps"])
	_, hasDepth := events[0].Metadata["thinking_depth"]
	assert.False(t, hasDepth)
	require.NotNil(t, events[0].DurationMs)
	assert.Equal(t, int64(900), *events[0].DurationMs)
}

func TestTrackReasoningSession(t *testing.T) {
	m, store, _ := newTestMonitor(t)

	conf := 0.85
	m.TrackReasoningSession("agent-1", "s-1", 5, 2*time.Second, 2, &conf)

	steps := store.Points(MetricReasoningSteps)
	require.Len(t, steps, 1)
	assert.Equal(t, 5.0, steps[0].Value)
	assert.Equal(t, "s-1", steps[0].Labels["session_id"])

	decisions := store.Points(MetricReasoningDecisions)
	require.Len(t, decisions, 1)
	assert.Equal(t, 2.0, decisions[0].Value)

	confidence := store.Points("agent.reasoning_confidence")
	require.Len(t, confidence, 1)
	assert.Equal(t, 0.85, confidence[0].Value)
}
