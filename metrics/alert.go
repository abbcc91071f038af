package metrics

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Condition compares a metric's latest windowed value against a threshold.
type Condition string

const (
	CondGreaterThan Condition = "greater_than"
	CondLessThan    Condition = "less_than"
	CondEquals      Condition = "equals"
)

// Valid reports whether c is a known condition. AddRule rejects unknown
// conditions instead of registering a rule that can never fire.
func (c Condition) Valid() bool {
	switch c {
	case CondGreaterThan, CondLessThan, CondEquals:
		return true
	}
	return false
}

func (c Condition) holds(value, threshold float64) bool {
	switch c {
	case CondGreaterThan:
		return value > threshold
	case CondLessThan:
		return value < threshold
	case CondEquals:
		return value == threshold
	}
	return false
}

// defaultRuleWindow is the stats lookback when a rule specifies none.
const defaultRuleWindow = 5 * time.Minute

// AlertFunc is invoked on the collector goroutine when a rule transitions
// into the alarmed state. Panics are recovered and logged so one bad
// callback cannot break rule evaluation.
type AlertFunc func(Alert)

// Rule is a threshold alert on one metric. State transitions are
// edge-triggered: the rule fires once on entering the alarmed state and
// re-arms silently when the condition stops holding.
type Rule struct {
	ID        uuid.UUID
	Metric    string
	Threshold float64
	Condition Condition
	Window    time.Duration
	Callback  AlertFunc

	triggered   bool
	triggerTime time.Time
}

// Alert is one fired rule instance. Immutable.
type Alert struct {
	RuleID    uuid.UUID `json:"rule_id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Condition Condition `json:"condition"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Evaluator owns the alert rules and the bounded fired-alert history.
// Evaluate is driven by the Collector once per tick; rules may also be
// added or removed at any time from other goroutines.
type Evaluator struct {
	store  *Store
	logger *slog.Logger

	mu         sync.Mutex
	rules      []*Rule
	history    []Alert // ring, oldest first
	historyCap int
}

// NewEvaluator creates an evaluator reading from store. historyCap bounds
// the retained fired alerts; non-positive values fall back to DefaultCapacity.
func NewEvaluator(store *Store, logger *slog.Logger, historyCap int) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if historyCap <= 0 {
		historyCap = DefaultCapacity
	}
	return &Evaluator{
		store:      store,
		logger:     logger,
		historyCap: historyCap,
	}
}

// AddRule registers a threshold rule and returns its id. Duplicate rules on
// the same metric are allowed and evaluated independently. A non-positive
// window falls back to 5 minutes.
func (e *Evaluator) AddRule(metric string, threshold float64, cond Condition, window time.Duration, cb AlertFunc) (uuid.UUID, error) {
	if metric == "" {
		return uuid.Nil, fmt.Errorf("metrics: alert rule requires a metric name")
	}
	if !cond.Valid() {
		return uuid.Nil, fmt.Errorf("metrics: unknown alert condition %q", cond)
	}
	if window <= 0 {
		window = defaultRuleWindow
	}

	rule := &Rule{
		ID:        uuid.New(),
		Metric:    metric,
		Threshold: threshold,
		Condition: cond,
		Window:    window,
		Callback:  cb,
	}

	e.mu.Lock()
	e.rules = append(e.rules, rule)
	e.mu.Unlock()

	e.logger.Info("alert rule registered",
		"rule_id", rule.ID, "metric", metric, "condition", string(cond), "threshold", threshold)
	return rule.ID, nil
}

// RemoveRule deregisters a rule by id. Returns false if no such rule exists.
func (e *Evaluator) RemoveRule(id uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Evaluate runs one evaluation pass over all rules. A rule whose metric has
// no points in its window is skipped without touching its state.
func (e *Evaluator) Evaluate() {
	e.mu.Lock()
	rules := make([]*Rule, len(e.rules))
	copy(rules, e.rules)
	e.mu.Unlock()

	for _, rule := range rules {
		stats, ok := e.store.Stats(rule.Metric, rule.Window)
		if !ok {
			continue
		}

		holds := rule.Condition.holds(stats.Latest, rule.Threshold)

		e.mu.Lock()
		switch {
		case holds && !rule.triggered:
			rule.triggered = true
			rule.triggerTime = time.Now().UTC()
			alert := Alert{
				RuleID:    rule.ID,
				Metric:    rule.Metric,
				Value:     stats.Latest,
				Threshold: rule.Threshold,
				Condition: rule.Condition,
				Timestamp: rule.triggerTime,
				Message: fmt.Sprintf("%s is %.2f (%s threshold %.2f)",
					rule.Metric, stats.Latest, rule.Condition, rule.Threshold),
			}
			e.appendHistoryLocked(alert)
			e.mu.Unlock()

			e.logger.Warn("alert fired", "rule_id", alert.RuleID, "metric", alert.Metric,
				"value", alert.Value, "threshold", alert.Threshold)
			e.invoke(rule.Callback, alert)

		case !holds && rule.triggered:
			// Re-arm silently: no resolved notification, only the flag flip.
			rule.triggered = false
			rule.triggerTime = time.Time{}
			e.mu.Unlock()

		default:
			e.mu.Unlock()
		}
	}
}

// History returns up to limit of the most recent fired alerts, newest first.
// limit <= 0 returns the full retained history.
func (e *Evaluator) History(limit int) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Alert, len(e.history))
	for i, a := range e.history {
		out[len(e.history)-1-i] = a
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Since returns the fired alerts at or after t, newest first.
func (e *Evaluator) Since(t time.Time) []Alert {
	var out []Alert
	for _, a := range e.History(0) {
		if a.Timestamp.Before(t) {
			break // history is newest-first
		}
		out = append(out, a)
	}
	return out
}

func (e *Evaluator) appendHistoryLocked(a Alert) {
	e.history = append(e.history, a)
	if len(e.history) > e.historyCap {
		e.history = e.history[len(e.history)-e.historyCap:]
	}
}

// invoke runs an alert callback, recovering panics so evaluation survives
// a broken notifier.
func (e *Evaluator) invoke(cb AlertFunc, alert Alert) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("alert callback panicked", "rule_id", alert.RuleID, "panic", r)
		}
	}()
	cb(alert)
}
