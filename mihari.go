// Package mihari is the public API for embedding the mihari agent
// telemetry suite.
//
// Consumers construct a Hub, start it, and hand its components to their
// agent code:
//
//	hub, err := mihari.New(
//	    mihari.WithLogger(logger),
//	    mihari.WithVersion(version),
//	    mihari.WithConnector(integrations.NewSlack(url)),
//	)
//	if err != nil { ... }
//	hub.Start(ctx)
//	defer hub.Shutdown(context.Background())
//
// The import graph enforces a strict no-cycle rule: mihari (root) imports
// the component packages, but the component packages never import mihari.
package mihari

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/harukaze-ai/mihari/eventlog"
	"github.com/harukaze-ai/mihari/integrations"
	"github.com/harukaze-ai/mihari/internal/config"
	"github.com/harukaze-ai/mihari/internal/telemetry"
	"github.com/harukaze-ai/mihari/metrics"
	"github.com/harukaze-ai/mihari/monitor"
	"github.com/harukaze-ai/mihari/reasoning"
)

// Hub wires the telemetry components together: one metric store, one
// alert evaluator, one event log, one monitor, one collector, and the
// notification manager. Construct with New(), start with Start().
// Hub has no public fields — use New() options to configure it.
type Hub struct {
	cfg       config.Config
	logger    *slog.Logger
	version   string
	store     *metrics.Store
	eval      *metrics.Evaluator
	log       *eventlog.Log
	mon       *monitor.Monitor
	collector *metrics.Collector
	manager   *integrations.Manager
	sqlite    *eventlog.SQLiteSink // nil when no sqlite path is configured

	otelShutdown telemetry.Shutdown
}

// New initialises the hub: loads configuration, opens the configured
// event sinks, and wires all components. It does NOT start the collector
// goroutine — call Start().
func New(opts ...Option) (*Hub, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logDir != "" {
		cfg.LogDir = o.logDir
	}
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.collectInterval > 0 {
		cfg.CollectInterval = o.collectInterval
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger := o.logger
	if logger == nil {
		logger = newLogger(cfg)
	}
	logger.Info("mihari starting", "version", version)

	otelShutdown, err := telemetry.Init(context.Background(),
		cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	sinks, sqlite, err := buildSinks(cfg, o.sinks)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, err
	}

	store := metrics.NewStore(cfg.MetricCapacity)
	eval := metrics.NewEvaluator(store, logger, cfg.AlertHistoryCapacity)
	log := eventlog.NewLog(logger, cfg.EventLogCapacity, sinks...)
	mon := monitor.New(store, log, eval, logger)
	collector := metrics.NewCollector(store, eval, o.sampler, logger, cfg.CollectInterval)

	manager := integrations.NewManager(logger)
	for _, c := range buildConnectors(cfg) {
		manager.Register(c)
	}
	for _, c := range o.connectors {
		manager.Register(c)
	}

	return &Hub{
		cfg:          cfg,
		logger:       logger,
		version:      version,
		store:        store,
		eval:         eval,
		log:          log,
		mon:          mon,
		collector:    collector,
		manager:      manager,
		sqlite:       sqlite,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background collector. Safe to call once.
func (h *Hub) Start(ctx context.Context) {
	h.collector.Start(ctx)
	h.logger.Info("mihari started", "collect_interval", h.cfg.CollectInterval.String())
}

// Shutdown stops the collector, closes the event sinks, and flushes the
// OTEL exporters. The in-memory store and log remain readable.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("mihari shutting down")

	h.collector.Stop(ctx)
	err := h.log.Close()
	if otelErr := h.otelShutdown(ctx); otelErr != nil && err == nil {
		err = otelErr
	}

	h.logger.Info("mihari stopped")
	return err
}

// Metrics returns the shared metric store.
func (h *Hub) Metrics() *metrics.Store { return h.store }

// Alerts returns the alert evaluator.
func (h *Hub) Alerts() *metrics.Evaluator { return h.eval }

// Events returns the event log.
func (h *Hub) Events() *eventlog.Log { return h.log }

// Monitor returns the agent monitor.
func (h *Hub) Monitor() *monitor.Monitor { return h.mon }

// Integrations returns the notification manager.
func (h *Hub) Integrations() *integrations.Manager { return h.manager }

// EventStore returns the durable sqlite event store, or nil when
// MIHARI_SQLITE_PATH is not configured.
func (h *Hub) EventStore() *eventlog.SQLiteSink { return h.sqlite }

// AddAlertRule registers a threshold alert. When the rule fires, the
// alert is logged to the event log and delivered through every registered
// connector before the optional callback runs.
func (h *Hub) AddAlertRule(metric string, threshold float64, cond metrics.Condition, window time.Duration, cb metrics.AlertFunc) (uuid.UUID, error) {
	return h.eval.AddRule(metric, threshold, cond, window, func(a metrics.Alert) {
		h.log.LogEvent("system", eventlog.EventAlertFired, a.Message,
			eventlog.WithLevel(eventlog.LevelWarning),
			eventlog.WithMetadata(map[string]any{
				"rule_id":   a.RuleID.String(),
				"metric":    a.Metric,
				"value":     a.Value,
				"threshold": a.Threshold,
			}))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.manager.SendAlertToAll(ctx, a)

		if cb != nil {
			cb(a)
		}
	})
}

// Reason runs fn inside a reasoning session for one agent task. The
// session's events land in the event log and its summary metrics in the
// metric store.
func (h *Hub) Reason(ctx context.Context, agentID, task string, fn func(*reasoning.Session) error) error {
	return reasoning.Run(ctx, h.log, h.mon, agentID, task, fn)
}

// NewReasoningChain opens a manual-lifecycle reasoning chain for call
// sites that cannot wrap their work in a Reason scope.
func (h *Hub) NewReasoningChain(ctx context.Context, agentID, task string) *reasoning.Chain {
	return reasoning.NewChain(ctx, h.log, h.mon, agentID, task)
}

// newLogger builds the hub's own logger from config when the caller did
// not inject one.
func newLogger(cfg config.Config) *slog.Logger {
	if !cfg.ConsoleLog {
		return slog.New(slog.DiscardHandler)
	}
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildSinks opens the file and sqlite sinks enabled by config, plus any
// extra sinks from options.
func buildSinks(cfg config.Config, extra []eventlog.Sink) ([]eventlog.Sink, *eventlog.SQLiteSink, error) {
	var sinks []eventlog.Sink
	if cfg.FileLog {
		sinks = append(sinks, eventlog.NewTextSink(filepath.Join(cfg.LogDir, cfg.TextLogFile)))
	}
	if cfg.JSONLog {
		sinks = append(sinks, eventlog.NewJSONLSink(filepath.Join(cfg.LogDir, cfg.JSONLogFile)))
	}
	if cfg.ReasoningLog {
		sinks = append(sinks, eventlog.NewReasoningSink(filepath.Join(cfg.LogDir, "reasoning", cfg.ReasoningLogFile)))
	}

	var sqlite *eventlog.SQLiteSink
	if cfg.SQLitePath != "" {
		var err error
		sqlite, err = eventlog.NewSQLiteSink(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite sink: %w", err)
		}
		sinks = append(sinks, sqlite)
	}

	return append(sinks, extra...), sqlite, nil
}

// buildConnectors creates the notification connectors enabled by config.
func buildConnectors(cfg config.Config) []integrations.Connector {
	var out []integrations.Connector
	if cfg.SlackWebhookURL != "" {
		out = append(out, integrations.NewSlack(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookURL != "" {
		out = append(out, integrations.NewDiscord(cfg.DiscordWebhookURL))
	}
	if cfg.TeamsWebhookURL != "" {
		out = append(out, integrations.NewTeams(cfg.TeamsWebhookURL))
	}
	if cfg.WebhookURL != "" {
		out = append(out, integrations.NewWebhook(cfg.WebhookURL))
	}
	if cfg.SMTPHost != "" {
		var to []string
		for _, addr := range strings.Split(cfg.SMTPTo, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				to = append(to, addr)
			}
		}
		out = append(out, integrations.NewEmail(integrations.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			To:       to,
		}))
	}
	return out
}
