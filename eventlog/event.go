// Package eventlog provides the append-only structured audit trail for
// agent activity: a bounded in-memory event ring mirrored to pluggable
// sinks (plain text, JSON lines, reasoning JSON, sqlite).
package eventlog

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType represents the category of an agent event.
type EventType string

const (
	// Agent lifecycle events.
	EventAgentStarted EventType = "AgentStarted"
	EventAgentStopped EventType = "AgentStopped"

	// Task events.
	EventTaskStarted   EventType = "TaskStarted"
	EventTaskCompleted EventType = "TaskCompleted"
	EventTaskFailed    EventType = "TaskFailed"

	// Collaborator events.
	EventToolCall EventType = "ToolCall"
	EventLLMCall  EventType = "LLMCall"

	// Alerting.
	EventAlertFired EventType = "AlertFired"

	// Reasoning events. Exactly these four kinds are mirrored to the
	// reasoning sink and included in reasoning exports.
	EventReasoningStarted EventType = "ReasoningStarted"
	EventReasoningStep    EventType = "ReasoningStep"
	EventDecisionPoint    EventType = "DecisionPoint"
	EventReasoningChain   EventType = "ReasoningChain"
)

// Reasoning reports whether t is one of the four reasoning event kinds.
func (t EventType) Reasoning() bool {
	switch t {
	case EventReasoningStarted, EventReasoningStep, EventDecisionPoint, EventReasoningChain:
		return true
	}
	return false
}

// Level is the severity of an event.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Slog maps a Level onto the standard slog levels. CRITICAL has no slog
// equivalent and maps above ERROR.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarning:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelCritical:
		return slog.LevelError + 4
	}
	return slog.LevelInfo
}

// Event is one record in the event log. Immutable once created.
type Event struct {
	ID            uuid.UUID      `json:"event_id"`
	AgentID       string         `json:"agent_id"`
	Type          EventType      `json:"event_type"`
	Level         Level          `json:"level"`
	Message       string         `json:"message"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	DurationMs    *int64         `json:"duration_ms,omitempty"`
	ReasoningStep *int           `json:"reasoning_step,omitempty"`
	ParentEventID *uuid.UUID     `json:"parent_event_id,omitempty"`
	ThinkingChain []string       `json:"thinking_chain,omitempty"`
}

// SessionID returns the reasoning session id carried in the event metadata,
// or "" when the event is not part of a session.
func (e Event) SessionID() string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata["session_id"].(string); ok {
		return v
	}
	return ""
}
