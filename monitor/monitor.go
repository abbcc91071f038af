// Package monitor binds the metric store and event log together per agent:
// lifecycle bookkeeping, task/error/LLM/reasoning counters, and aggregated
// dashboard views.
package monitor

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/harukaze-ai/mihari/eventlog"
	"github.com/harukaze-ai/mihari/metrics"
)

// Custom metric names recorded by the monitor.
const (
	MetricAgentRuntime       = "agent.runtime_seconds"
	MetricTaskDuration       = "agent.task_duration_ms"
	MetricErrors             = "agent.errors"
	MetricLLMTokens          = "agent.llm_tokens"
	MetricLLMDuration        = "agent.llm_duration_ms"
	MetricReasoningSteps     = "agent.reasoning_steps"
	MetricReasoningDuration  = "agent.reasoning_duration_ms"
	MetricReasoningDecisions = "agent.reasoning_decisions"
)

// Status is the lifecycle state of an agent.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// agentState is per-agent lifecycle bookkeeping. Created lazily on the
// first tracking call, kept for the process lifetime.
type agentState struct {
	status       Status
	startTime    time.Time
	stopTime     time.Time
	totalRuntime time.Duration
}

// Monitor aggregates per-agent telemetry over a shared metric store and
// event log. All methods are safe for concurrent use and never fail:
// absence of prior data yields empty aggregates.
type Monitor struct {
	store  *metrics.Store
	log    *eventlog.Log
	eval   *metrics.Evaluator // optional; feeds recent-alert counts
	logger *slog.Logger

	mu          sync.Mutex
	agents      map[string]*agentState
	taskTimings map[string][]float64 // "agent\x00task" -> duration samples (ms)
	errorCounts map[string]int       // "agent\x00errType" -> count
}

// New creates a monitor over the given store and event log. eval may be nil
// when alerting is not wired.
func New(store *metrics.Store, log *eventlog.Log, eval *metrics.Evaluator, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		store:       store,
		log:         log,
		eval:        eval,
		logger:      logger,
		agents:      make(map[string]*agentState),
		taskTimings: make(map[string][]float64),
		errorCounts: make(map[string]int),
	}
}

func key(agentID, name string) string { return agentID + "\x00" + name }

// TrackAgentStart marks an agent running and logs its start event.
func (m *Monitor) TrackAgentStart(agentID string) {
	m.mu.Lock()
	st := m.state(agentID)
	st.status = StatusRunning
	st.startTime = time.Now().UTC()
	m.mu.Unlock()

	m.log.LogEvent(agentID, eventlog.EventAgentStarted, "agent started")
}

// TrackAgentStop marks an agent stopped, records its runtime metric, and
// logs its stop event. Stopping an agent that never started records no
// runtime.
func (m *Monitor) TrackAgentStop(agentID string) {
	m.mu.Lock()
	st := m.state(agentID)
	var runtime time.Duration
	if st.status == StatusRunning {
		runtime = time.Since(st.startTime)
		st.totalRuntime += runtime
	}
	st.status = StatusStopped
	st.stopTime = time.Now().UTC()
	m.mu.Unlock()

	if runtime > 0 {
		m.store.Record(MetricAgentRuntime, runtime.Seconds(), map[string]string{"agent_id": agentID})
	}
	m.log.LogEvent(agentID, eventlog.EventAgentStopped, "agent stopped",
		eventlog.WithDuration(runtime))
}

// TrackTaskDuration records one task execution.
func (m *Monitor) TrackTaskDuration(agentID, taskName string, duration time.Duration) {
	ms := float64(duration.Milliseconds())

	m.mu.Lock()
	k := key(agentID, taskName)
	m.taskTimings[k] = append(m.taskTimings[k], ms)
	m.mu.Unlock()

	m.store.Record(MetricTaskDuration, ms, map[string]string{
		"agent_id": agentID,
		"task":     taskName,
	})
}

// TrackError counts one error occurrence by type.
func (m *Monitor) TrackError(agentID, errorType string) {
	m.mu.Lock()
	m.errorCounts[key(agentID, errorType)]++
	m.mu.Unlock()

	m.store.Record(MetricErrors, 1, map[string]string{
		"agent_id":   agentID,
		"error_type": errorType,
	})
}

// LLMCall describes one model invocation for tracking. ReasoningSteps and
// ThinkingDepth are optional; zero means not reported.
type LLMCall struct {
	Model          string
	TokensUsed     int
	Duration       time.Duration
	ReasoningSteps int
	ThinkingDepth  int
}

// TrackLLMCall records token and latency metrics for one model call and
// logs the call event.
func (m *Monitor) TrackLLMCall(agentID string, call LLMCall) {
	labels := map[string]string{"agent_id": agentID, "model": call.Model}
	m.store.Record(MetricLLMTokens, float64(call.TokensUsed), labels)
	m.store.Record(MetricLLMDuration, float64(call.Duration.Milliseconds()), labels)

	md := map[string]any{
		"model":       call.Model,
		"tokens_used": call.TokensUsed,
	}
	if call.ReasoningSteps > 0 {
		md["reasoning_steps"] = call.ReasoningSteps
	}
	if call.ThinkingDepth > 0 {
		md["thinking_depth"] = call.ThinkingDepth
	}
	m.log.LogEvent(agentID, eventlog.EventLLMCall,
		"llm call: "+call.Model+" ("+strconv.Itoa(call.TokensUsed)+" tokens)",
		eventlog.WithMetadata(md),
		eventlog.WithDuration(call.Duration))
}

// TrackReasoningSession records the summary metrics of one completed
// reasoning session. Satisfies the reasoning.Reporter interface.
func (m *Monitor) TrackReasoningSession(agentID, sessionID string, totalSteps int, duration time.Duration, decisionPoints int, finalConfidence *float64) {
	labels := map[string]string{"agent_id": agentID, "session_id": sessionID}
	m.store.Record(MetricReasoningSteps, float64(totalSteps), labels)
	m.store.Record(MetricReasoningDuration, float64(duration.Milliseconds()), labels)
	m.store.Record(MetricReasoningDecisions, float64(decisionPoints), labels)
	if finalConfidence != nil {
		m.store.Record("agent.reasoning_confidence", *finalConfidence, labels)
	}
}

// AgentStatus returns the lifecycle status of one agent; StatusUnknown for
// agents never tracked.
func (m *Monitor) AgentStatus(agentID string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.agents[agentID]; ok {
		return st.status
	}
	return StatusUnknown
}

// state returns (creating if absent) the agent's state. Callers hold m.mu.
func (m *Monitor) state(agentID string) *agentState {
	st, ok := m.agents[agentID]
	if !ok {
		st = &agentState{status: StatusUnknown}
		m.agents[agentID] = st
	}
	return st
}
