package reasoning

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harukaze-ai/mihari/eventlog"
)

type recordedSummary struct {
	agentID         string
	sessionID       string
	totalSteps      int
	duration        time.Duration
	decisionPoints  int
	finalConfidence *float64
}

type fakeReporter struct {
	summaries []recordedSummary
}

func (f *fakeReporter) TrackReasoningSession(agentID, sessionID string, totalSteps int, duration time.Duration, decisionPoints int, finalConfidence *float64) {
	f.summaries = append(f.summaries, recordedSummary{
		agentID:         agentID,
		sessionID:       sessionID,
		totalSteps:      totalSteps,
		duration:        duration,
		decisionPoints:  decisionPoints,
		finalConfidence: finalConfidence,
	})
}

func newTestLog() *eventlog.Log {
	return eventlog.NewLog(slog.New(slog.DiscardHandler), 0)
}

func TestRunCleanExitEmitsChain(t *testing.T) {
	log := newTestLog()
	reporter := &fakeReporter{}

	err := Run(context.Background(), log, reporter, "agent-1", "pick a cache", func(s *Session) error {
		s.Think("redis is already deployed").
			Decide("which cache to use", []string{"redis", "memcached"}, "redis", "operational familiarity").
			Conclude("use redis", WithConfidence(0.9))
		return nil
	})
	require.NoError(t, err)

	chains := log.Events(eventlog.Filter{Type: eventlog.EventReasoningChain})
	require.Len(t, chains, 1)
	chain := chains[0]

	require.Len(t, chain.ThinkingChain, 3)
	assert.Equal(t, "redis is already deployed", chain.ThinkingChain[0])
	assert.Equal(t, "which cache to use", chain.ThinkingChain[1])
	assert.Equal(t, "use redis", chain.ThinkingChain[2])
	assert.Equal(t, "use redis", chain.Metadata["final_conclusion"])
	assert.Equal(t, 3, chain.Metadata["total_steps"])
	assert.Equal(t, 1, chain.Metadata["decision_points"])
	require.NotNil(t, chain.DurationMs)

	require.Len(t, reporter.summaries, 1)
	summary := reporter.summaries[0]
	assert.Equal(t, "agent-1", summary.agentID)
	assert.Equal(t, 3, summary.totalSteps)
	assert.Equal(t, 1, summary.decisionPoints)
	require.NotNil(t, summary.finalConfidence)
	assert.Equal(t, 0.9, *summary.finalConfidence)
}

func TestRunErrorExitEmitsNoChain(t *testing.T) {
	log := newTestLog()
	reporter := &fakeReporter{}

	err := Run(context.Background(), log, reporter, "agent-1", "doomed task", func(s *Session) error {
		s.Think("this will not work")
		return errors.New("tool unavailable")
	})
	require.Error(t, err)

	// The step event survives; the chain event and summary do not.
	assert.Len(t, log.Events(eventlog.Filter{Type: eventlog.EventReasoningStep}), 1)
	assert.Empty(t, log.Events(eventlog.Filter{Type: eventlog.EventReasoningChain}))
	assert.Empty(t, reporter.summaries)
}

func TestRunPanicEmitsNoChainAndRepanics(t *testing.T) {
	log := newTestLog()

	require.PanicsWithValue(t, "nil map write", func() {
		_ = Run(context.Background(), log, nil, "agent-1", "task", func(s *Session) error {
			s.Think("about to blow up")
			panic("nil map write")
		})
	})

	assert.Empty(t, log.Events(eventlog.Filter{Type: eventlog.EventReasoningChain}))
}

func TestSessionEventWiring(t *testing.T) {
	log := newTestLog()

	var sessionID string
	err := Run(context.Background(), log, nil, "agent-1", "wire check", func(s *Session) error {
		sessionID = s.ID()
		s.Think("first", WithConfidence(0.5))
		s.Decide("pick one", []string{"x", "y"}, "y", "y is simpler")
		return nil
	})
	require.NoError(t, err)

	started := log.Events(eventlog.Filter{Type: eventlog.EventReasoningStarted})
	require.Len(t, started, 1)
	assert.Equal(t, sessionID, started[0].SessionID())

	steps := log.Events(eventlog.Filter{Type: eventlog.EventReasoningStep})
	require.Len(t, steps, 1)
	require.NotNil(t, steps[0].ReasoningStep)
	assert.Equal(t, 1, *steps[0].ReasoningStep)
	assert.Equal(t, 0.5, steps[0].Metadata["confidence"])
	require.NotNil(t, steps[0].ParentEventID)
	assert.Equal(t, started[0].ID, *steps[0].ParentEventID)

	decisions := log.Events(eventlog.Filter{Type: eventlog.EventDecisionPoint})
	require.Len(t, decisions, 1)
	assert.Equal(t, "pick one", decisions[0].Message)
	assert.Equal(t, "y", decisions[0].Metadata["chosen_option"])
	assert.Equal(t, "y is simpler", decisions[0].Metadata["reasoning"])
	require.NotNil(t, decisions[0].ReasoningStep)
	assert.Equal(t, 2, *decisions[0].ReasoningStep)
}

func TestStepsAfterCloseAreDropped(t *testing.T) {
	log := newTestLog()

	var leaked *Session
	err := Run(context.Background(), log, nil, "agent-1", "task", func(s *Session) error {
		leaked = s
		s.Think("inside the scope")
		return nil
	})
	require.NoError(t, err)

	leaked.Think("outside the scope")

	steps := log.Events(eventlog.Filter{Type: eventlog.EventReasoningStep})
	require.Len(t, steps, 1)
	assert.Equal(t, "inside the scope", steps[0].Message)
}

func TestChainManualLifecycle(t *testing.T) {
	log := newTestLog()
	reporter := &fakeReporter{}

	c := NewChain(context.Background(), log, reporter, "agent-1", "plan a rollout")
	c.Step("canary first").
		Decide("rollout strategy", []string{"canary", "big bang"}, "canary", "lower blast radius")
	c.Conclude("start with 5% canary")

	chains := log.Events(eventlog.Filter{Type: eventlog.EventReasoningChain})
	require.Len(t, chains, 1)
	assert.Equal(t, []string{"canary first", "rollout strategy", "start with 5% canary"}, chains[0].ThinkingChain)
	require.Len(t, reporter.summaries, 1)
	assert.Equal(t, c.ID(), reporter.summaries[0].sessionID)
}

func TestChainAbandonEmitsNoChain(t *testing.T) {
	log := newTestLog()

	c := NewChain(context.Background(), log, nil, "agent-1", "task")
	c.Step("partial thought")
	c.Abandon("caller gave up")

	assert.Empty(t, log.Events(eventlog.Filter{Type: eventlog.EventReasoningChain}))
	assert.Len(t, log.Events(eventlog.Filter{Type: eventlog.EventReasoningStep}), 1)
}
