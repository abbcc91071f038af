package monitor

import (
	"strings"
	"time"

	"github.com/harukaze-ai/mihari/metrics"
)

// TaskPerformance summarises the recorded executions of one task.
type TaskPerformance struct {
	AvgDurationMs float64 `json:"avg_duration_ms"`
	MinDurationMs float64 `json:"min_duration_ms"`
	MaxDurationMs float64 `json:"max_duration_ms"`
	TotalCalls    int     `json:"total_calls"`
}

// Dashboard is the per-agent aggregation view.
type Dashboard struct {
	AgentID      string                     `json:"agent_id"`
	Status       Status                     `json:"status"`
	Performance  map[string]TaskPerformance `json:"performance"`
	TotalErrors  int                        `json:"total_errors"`
	ErrorsByType map[string]int             `json:"errors_by_type"`
	System       SystemUsage                `json:"system"`
}

// SystemUsage is the latest sampled host utilisation.
type SystemUsage struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

// Health is the process-wide snapshot, not agent-scoped.
type Health struct {
	Timestamp    time.Time   `json:"timestamp"`
	System       SystemUsage `json:"system"`
	ActiveAgents int         `json:"active_agents"`
	TotalAgents  int         `json:"total_agents"`
	RecentAlerts int         `json:"recent_alerts"`
}

// healthAlertWindow is how far back Health counts fired alerts.
const healthAlertWindow = time.Hour

// AgentDashboard builds the aggregation view for one agent. Unknown agents
// yield a dashboard with empty aggregates.
func (m *Monitor) AgentDashboard(agentID string) Dashboard {
	d := Dashboard{
		AgentID:      agentID,
		Status:       m.AgentStatus(agentID),
		Performance:  make(map[string]TaskPerformance),
		ErrorsByType: make(map[string]int),
		System:       m.systemUsage(),
	}

	prefix := agentID + "\x00"

	m.mu.Lock()
	for k, samples := range m.taskTimings {
		if !strings.HasPrefix(k, prefix) || len(samples) == 0 {
			continue
		}
		task := k[len(prefix):]
		perf := TaskPerformance{
			MinDurationMs: samples[0],
			MaxDurationMs: samples[0],
			TotalCalls:    len(samples),
		}
		sum := 0.0
		for _, s := range samples {
			if s < perf.MinDurationMs {
				perf.MinDurationMs = s
			}
			if s > perf.MaxDurationMs {
				perf.MaxDurationMs = s
			}
			sum += s
		}
		perf.AvgDurationMs = sum / float64(len(samples))
		d.Performance[task] = perf
	}
	for k, count := range m.errorCounts {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		d.ErrorsByType[k[len(prefix):]] = count
		d.TotalErrors += count
	}
	m.mu.Unlock()

	return d
}

// SystemHealth builds the process-wide snapshot.
func (m *Monitor) SystemHealth() Health {
	h := Health{
		Timestamp: time.Now().UTC(),
		System:    m.systemUsage(),
	}

	m.mu.Lock()
	h.TotalAgents = len(m.agents)
	for _, st := range m.agents {
		if st.status == StatusRunning {
			h.ActiveAgents++
		}
	}
	m.mu.Unlock()

	if m.eval != nil {
		h.RecentAlerts = len(m.eval.Since(time.Now().UTC().Add(-healthAlertWindow)))
	}
	return h
}

func (m *Monitor) systemUsage() SystemUsage {
	var u SystemUsage
	if s, ok := m.store.Stats(metrics.MetricCPUPercent, healthAlertWindow); ok {
		u.CPUPercent = s.Latest
	}
	if s, ok := m.store.Stats(metrics.MetricMemoryPercent, healthAlertWindow); ok {
		u.MemoryPercent = s.Latest
	}
	if s, ok := m.store.Stats(metrics.MetricDiskPercent, healthAlertWindow); ok {
		u.DiskPercent = s.Latest
	}
	return u
}
