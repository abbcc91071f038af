package integrations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/harukaze-ai/mihari/metrics"
)

// Manager holds the registered connectors and fans deliveries out to all
// of them concurrently. One connector's failure (or panic) never prevents
// delivery through the others; per-connector outcomes are returned in a
// result map keyed by connector name.
type Manager struct {
	logger *slog.Logger

	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:     logger,
		connectors: make(map[string]Connector),
	}
}

// Register adds (or replaces) a connector under its own name.
func (m *Manager) Register(c Connector) {
	m.mu.Lock()
	m.connectors[c.Name()] = c
	m.mu.Unlock()
	m.logger.Info("integration registered", "connector", c.Name())
}

// Get returns a connector by name.
func (m *Manager) Get(name string) (Connector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.connectors[name]
	return c, ok
}

// Names returns the registered connector names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.connectors))
	for name := range m.connectors {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Broadcast delivers a message through every connector.
func (m *Manager) Broadcast(ctx context.Context, text string) map[string]Result {
	return m.fanOut(ctx, func(ctx context.Context, c Connector) error {
		return c.SendMessage(ctx, text)
	})
}

// SendAlertToAll delivers an alert through every connector. Connectors
// implementing AlertSender render it natively; the rest receive the
// formatted fallback line.
func (m *Manager) SendAlertToAll(ctx context.Context, alert metrics.Alert) map[string]Result {
	return m.fanOut(ctx, func(ctx context.Context, c Connector) error {
		if as, ok := c.(AlertSender); ok {
			return as.SendAlert(ctx, alert)
		}
		return c.SendMessage(ctx, formatAlert(alert))
	})
}

// TestAll runs every connector's self-test.
func (m *Manager) TestAll(ctx context.Context) map[string]Result {
	return m.fanOut(ctx, func(ctx context.Context, c Connector) error {
		return c.TestConnection(ctx)
	})
}

// fanOut runs one delivery per connector concurrently and collects the
// per-connector results. Panics inside a connector are converted to failed
// results so a broken adapter cannot take down the broadcast.
func (m *Manager) fanOut(ctx context.Context, deliver func(context.Context, Connector) error) map[string]Result {
	m.mu.RLock()
	connectors := make([]Connector, 0, len(m.connectors))
	for _, c := range m.connectors {
		connectors = append(connectors, c)
	}
	m.mu.RUnlock()

	results := make(map[string]Result, len(connectors))
	var resMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range connectors {
		g.Go(func() error {
			err := m.safeDeliver(ctx, c, deliver)

			res := Result{Connector: c.Name(), Success: err == nil}
			if err != nil {
				res.Error = err.Error()
				m.logger.Warn("integration delivery failed", "connector", c.Name(), "error", err)
			}
			resMu.Lock()
			results[c.Name()] = res
			resMu.Unlock()
			return nil // failures are reported per connector, never abort the group
		})
	}
	_ = g.Wait()
	return results
}

func (m *Manager) safeDeliver(ctx context.Context, c Connector, deliver func(context.Context, Connector) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("integrations: connector %s panicked: %v", c.Name(), r)
		}
	}()
	return deliver(ctx, c)
}
