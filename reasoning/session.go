// Package reasoning captures an agent's step-by-step thinking for a single
// unit of work as an ordered chain of thinking, decision, and conclusion
// steps layered on the event log.
package reasoning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/harukaze-ai/mihari/eventlog"
	"github.com/harukaze-ai/mihari/internal/telemetry"
)

// StepType classifies one reasoning step.
type StepType string

const (
	StepThinking   StepType = "thinking"
	StepDecision   StepType = "decision"
	StepConclusion StepType = "conclusion"
)

// Step is one entry in a session's reasoning chain. Scoped to its session;
// persisted only through the events it emits.
type Step struct {
	Number     int
	Type       StepType
	Content    string
	Timestamp  time.Time
	Confidence *float64
	Metadata   map[string]any
}

// Reporter receives the session summary on clean completion. Implemented by
// the agent monitor; a nil Reporter is allowed.
type Reporter interface {
	TrackReasoningSession(agentID, sessionID string, totalSteps int, duration time.Duration, decisionPoints int, finalConfidence *float64)
}

// Session records the reasoning chain of one agent task. Create it through
// Run (scoped) or NewChain (manual lifecycle). Think/Decide/Conclude each
// emit an event immediately; the consolidated chain event is emitted only
// when the session completes cleanly.
type Session struct {
	log      *eventlog.Log
	reporter Reporter
	agentID  string
	task     string

	id      string
	startID uuid.UUID
	started time.Time
	span    trace.Span

	mu        sync.Mutex
	steps     []Step
	decisions int
	closed    bool
}

// Run executes fn inside a reasoning session scoped to one agent task.
// If fn returns nil, the session completes: one chain event is emitted and
// the summary is reported. If fn returns an error or panics, no chain event
// is emitted — the step events already logged remain.
func Run(ctx context.Context, log *eventlog.Log, reporter Reporter, agentID, task string, fn func(*Session) error) error {
	s := open(ctx, log, reporter, agentID, task)

	defer func() {
		if r := recover(); r != nil {
			s.abandon(fmt.Sprintf("panic: %v", r))
			panic(r)
		}
	}()

	if err := fn(s); err != nil {
		s.abandon(err.Error())
		return err
	}
	s.complete()
	return nil
}

func open(ctx context.Context, log *eventlog.Log, reporter Reporter, agentID, task string) *Session {
	s := &Session{
		log:      log,
		reporter: reporter,
		agentID:  agentID,
		task:     task,
		id:       uuid.NewString(),
		started:  time.Now().UTC(),
	}

	_, s.span = telemetry.Tracer("mihari/reasoning").Start(ctx, "reasoning.session",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("reasoning.task", task),
			attribute.String("reasoning.session_id", s.id),
		))

	started := log.LogEvent(agentID, eventlog.EventReasoningStarted,
		fmt.Sprintf("reasoning started: %s", task),
		eventlog.WithMetadata(map[string]any{
			"session_id": s.id,
			"task":       task,
		}))
	s.startID = started.ID
	return s
}

// ID returns the session id, usable to filter reasoning exports.
func (s *Session) ID() string { return s.id }

// StepOption customises one recorded step.
type StepOption func(*Step)

// WithConfidence attaches a confidence score in [0, 1].
func WithConfidence(c float64) StepOption {
	return func(st *Step) { st.Confidence = &c }
}

// WithStepMetadata attaches extra metadata to the step's event.
func WithStepMetadata(md map[string]any) StepOption {
	return func(st *Step) { st.Metadata = md }
}

// Think records a thinking step. Returns the session for chaining.
func (s *Session) Think(content string, opts ...StepOption) *Session {
	s.record(StepThinking, content, nil, opts...)
	return s
}

// Decide records a decision point: the options considered, the option
// chosen, and the reasoning behind the choice. The decision description is
// what enters the thinking chain. Returns the session for chaining.
func (s *Session) Decide(description string, options []string, chosen, reasoning string, opts ...StepOption) *Session {
	extra := map[string]any{
		"options":       options,
		"chosen_option": chosen,
		"reasoning":     reasoning,
	}
	s.record(StepDecision, description, extra, opts...)
	return s
}

// Conclude records a conclusion step. It does not close the session —
// closing happens when the Run scope exits.
func (s *Session) Conclude(content string, opts ...StepOption) *Session {
	s.record(StepConclusion, content, nil, opts...)
	return s
}

func (s *Session) record(typ StepType, content string, extra map[string]any, opts ...StepOption) {
	step := Step{
		Type:      typ,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&step)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	step.Number = len(s.steps) + 1
	s.steps = append(s.steps, step)
	if typ == StepDecision {
		s.decisions++
	}
	s.mu.Unlock()

	md := map[string]any{
		"session_id": s.id,
		"task":       s.task,
		"step_type":  string(typ),
	}
	for k, v := range extra {
		md[k] = v
	}
	for k, v := range step.Metadata {
		md[k] = v
	}
	if step.Confidence != nil {
		md["confidence"] = *step.Confidence
	}

	eventType := eventlog.EventReasoningStep
	if typ == StepDecision {
		eventType = eventlog.EventDecisionPoint
	}
	s.log.LogEvent(s.agentID, eventType, content,
		eventlog.WithMetadata(md),
		eventlog.WithReasoningStep(step.Number),
		eventlog.WithParent(s.startID),
	)

	s.span.AddEvent(string(typ), trace.WithAttributes(
		attribute.Int("reasoning.step", step.Number),
	))
}

// complete closes the session on the clean-exit path: emits the chain event
// and reports the session summary.
func (s *Session) complete() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	steps := make([]Step, len(s.steps))
	copy(steps, s.steps)
	decisions := s.decisions
	s.mu.Unlock()

	duration := time.Since(s.started)

	chain := make([]string, len(steps))
	var finalConclusion string
	var finalConfidence *float64
	for i, st := range steps {
		chain[i] = st.Content
	}
	if len(steps) > 0 {
		last := steps[len(steps)-1]
		finalConclusion = last.Content
		finalConfidence = last.Confidence
	}

	s.log.LogEvent(s.agentID, eventlog.EventReasoningChain,
		fmt.Sprintf("reasoning completed: %s (%d steps)", s.task, len(steps)),
		eventlog.WithMetadata(map[string]any{
			"session_id":       s.id,
			"task":             s.task,
			"final_conclusion": finalConclusion,
			"total_steps":      len(steps),
			"decision_points":  decisions,
		}),
		eventlog.WithThinkingChain(chain),
		eventlog.WithParent(s.startID),
		eventlog.WithDuration(duration),
	)

	if s.reporter != nil {
		s.reporter.TrackReasoningSession(s.agentID, s.id, len(steps), duration, decisions, finalConfidence)
	}

	s.span.SetAttributes(
		attribute.Int("reasoning.total_steps", len(steps)),
		attribute.Int("reasoning.decision_points", decisions),
	)
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
}

// abandon closes the session without emitting the chain event. The step
// events already logged remain in the event log.
func (s *Session) abandon(reason string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.span.SetStatus(codes.Error, reason)
	s.span.End()
}
