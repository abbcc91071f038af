package eventlog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logReasoningSession(l *Log, agentID, sessionID string) {
	session := map[string]any{"session_id": sessionID}

	l.LogEvent(agentID, EventReasoningStarted, "Reasoning session started: pick a storage backend",
		WithMetadata(session))
	l.LogEvent(agentID, EventReasoningStep, "postgres fits the relational shape",
		WithReasoningStep(1),
		WithMetadata(map[string]any{"session_id": sessionID, "step_type": "thinking"}))
	l.LogEvent(agentID, EventDecisionPoint, "choose the backend",
		WithReasoningStep(2),
		WithMetadata(map[string]any{
			"session_id":    sessionID,
			"options":       []string{"postgres", "sqlite"},
			"chosen_option": "postgres",
			"reasoning":     "needs concurrent writers",
		}))
	l.LogEvent(agentID, EventReasoningChain, "Reasoning chain completed",
		WithThinkingChain([]string{"postgres fits the relational shape", "choose the backend"}),
		WithMetadata(map[string]any{"session_id": sessionID, "final_conclusion": "choose the backend"}))
}

func TestExportReasoningMarkdown(t *testing.T) {
	l := newTestLog(0)
	logReasoningSession(l, "agent-1", "s-1")
	l.LogEvent("agent-1", EventTaskCompleted, "unrelated task event")

	out, err := l.ExportReasoning("agent-1", "s-1", FormatMarkdown)
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "# Reasoning Log")
	assert.Contains(t, md, "## Session s-1 (agent agent-1)")
	assert.Contains(t, md, "**Thinking:** postgres fits the relational shape")
	assert.Contains(t, md, "**Decision:** choose the backend")
	assert.Contains(t, md, "Options: postgres, sqlite")
	assert.Contains(t, md, "Chosen: postgres")
	assert.Contains(t, md, "**Chain complete** (2 steps)")
	assert.NotContains(t, md, "unrelated task event")
}

func TestExportReasoningJSON(t *testing.T) {
	l := newTestLog(0)
	logReasoningSession(l, "agent-1", "s-1")

	out, err := l.ExportReasoning("agent-1", "s-1", FormatJSON)
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal(out, &events))
	require.Len(t, events, 4)
	// Oldest first.
	assert.Equal(t, EventReasoningStarted, events[0].Type)
	assert.Equal(t, EventReasoningChain, events[3].Type)
}

func TestExportReasoningSessionFilter(t *testing.T) {
	l := newTestLog(0)
	logReasoningSession(l, "agent-1", "s-1")
	logReasoningSession(l, "agent-1", "s-2")

	out, err := l.ExportReasoning("agent-1", "s-2", FormatJSON)
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal(out, &events))
	require.Len(t, events, 4)
	for _, e := range events {
		assert.Equal(t, "s-2", e.SessionID())
	}
}

func TestExportReasoningUnknownFormat(t *testing.T) {
	l := newTestLog(0)
	_, err := l.ExportReasoning("", "", ExportFormat("yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}
