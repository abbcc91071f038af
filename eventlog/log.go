package eventlog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity bounds the in-memory event ring when none is configured.
const DefaultCapacity = 10000

// Sink receives every logged event. Implementations decide which events
// they persist (the reasoning sink only persists reasoning kinds).
// Write errors are logged by the Log and never surfaced to callers.
type Sink interface {
	Write(Event) error
	Close() error
}

// Log is the append-only event log. In-memory retention is a bounded ring;
// every event is also mirrored to the plain slog logger and to all sinks.
// Safe for concurrent use.
type Log struct {
	logger   *slog.Logger
	capacity int

	mu     sync.Mutex
	events []Event // ring, oldest first
	sinks  []Sink
}

// NewLog creates an event log. A nil logger falls back to slog.Default;
// non-positive capacity falls back to DefaultCapacity.
func NewLog(logger *slog.Logger, capacity int, sinks ...Sink) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		logger:   logger,
		capacity: capacity,
		sinks:    sinks,
	}
}

// EventOption customises one logged event.
type EventOption func(*Event)

// WithLevel overrides the default INFO level.
func WithLevel(l Level) EventOption {
	return func(e *Event) { e.Level = l }
}

// WithMetadata attaches structured metadata.
func WithMetadata(md map[string]any) EventOption {
	return func(e *Event) { e.Metadata = md }
}

// WithDuration records how long the logged operation took.
func WithDuration(d time.Duration) EventOption {
	return func(e *Event) {
		ms := d.Milliseconds()
		e.DurationMs = &ms
	}
}

// WithDurationMs records a duration already measured in milliseconds.
func WithDurationMs(ms int64) EventOption {
	return func(e *Event) { e.DurationMs = &ms }
}

// WithReasoningStep tags the event with its position in a reasoning chain.
func WithReasoningStep(n int) EventOption {
	return func(e *Event) { e.ReasoningStep = &n }
}

// WithParent links the event to the event that caused it.
func WithParent(id uuid.UUID) EventOption {
	return func(e *Event) { e.ParentEventID = &id }
}

// WithThinkingChain attaches the consolidated step contents of a completed
// reasoning session.
func WithThinkingChain(chain []string) EventOption {
	return func(e *Event) { e.ThinkingChain = chain }
}

// LogEvent records an event and returns it. The event gets a fresh UUID and
// the current UTC timestamp. Sink failures are logged and swallowed —
// logging must never crash the calling agent code.
func (l *Log) LogEvent(agentID string, typ EventType, message string, opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		AgentID:   agentID,
		Type:      typ,
		Level:     LevelInfo,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&e)
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	sinks := l.sinks
	l.mu.Unlock()

	l.logger.Log(context.Background(), e.Level.Slog(), e.Message,
		"agent_id", e.AgentID, "event_type", string(e.Type), "event_id", e.ID)

	for _, s := range sinks {
		if err := s.Write(e); err != nil {
			l.logger.Warn("eventlog: sink write failed", "error", err, "event_id", e.ID)
		}
	}
	return e
}

// Filter selects events. Zero-valued fields match everything.
type Filter struct {
	AgentID string
	Type    EventType
	Level   Level
	Limit   int
}

// Events returns a defensive copy of matching events, newest first,
// truncated to Filter.Limit when positive.
func (l *Log) Events(f Filter) []Event {
	l.mu.Lock()
	snapshot := make([]Event, len(l.events))
	copy(snapshot, l.events)
	l.mu.Unlock()

	out := make([]Event, 0, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		e := snapshot[i]
		if f.AgentID != "" && e.AgentID != f.AgentID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Level != "" && e.Level != f.Level {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// AgentStats are aggregates over one agent's retained events.
type AgentStats struct {
	TotalEvents       int               `json:"total_events"`
	EventTypes        map[EventType]int `json:"event_types"`
	ErrorCount        int               `json:"error_count"`
	AvgTaskDurationMs float64           `json:"avg_task_duration_ms"`
	LastActivity      time.Time         `json:"last_activity"`
}

// Stats derives aggregates for one agent. AvgTaskDurationMs averages over
// every event carrying a duration, not only task events. An unknown agent
// yields zero-valued stats, not an error.
func (l *Log) Stats(agentID string) AgentStats {
	events := l.Events(Filter{AgentID: agentID})

	stats := AgentStats{EventTypes: make(map[EventType]int)}
	var durSum int64
	var durCount int
	for _, e := range events {
		stats.TotalEvents++
		stats.EventTypes[e.Type]++
		if e.Level == LevelError || e.Level == LevelCritical {
			stats.ErrorCount++
		}
		if e.DurationMs != nil {
			durSum += *e.DurationMs
			durCount++
		}
		if e.Timestamp.After(stats.LastActivity) {
			stats.LastActivity = e.Timestamp
		}
	}
	if durCount > 0 {
		stats.AvgTaskDurationMs = float64(durSum) / float64(durCount)
	}
	return stats
}

// Close closes all sinks. The in-memory log remains readable.
func (l *Log) Close() error {
	l.mu.Lock()
	sinks := l.sinks
	l.sinks = nil
	l.mu.Unlock()

	var firstErr error
	for _, s := range sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
