package mihari

import (
	"log/slog"
	"time"

	"github.com/harukaze-ai/mihari/eventlog"
	"github.com/harukaze-ai/mihari/integrations"
	"github.com/harukaze-ai/mihari/metrics"
)

// Option configures a Hub.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger          *slog.Logger
	version         string
	logDir          string
	sqlitePath      string
	collectInterval time.Duration
	sampler         metrics.Sampler
	sinks           []eventlog.Sink
	connectors      []integrations.Connector
}

// WithLogger sets the structured logger for the Hub.
// If not set, one is built from config (MIHARI_LOG_LEVEL, MIHARI_CONSOLE_LOG).
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and OTEL resources.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithLogDir overrides the file sink directory from config (MIHARI_LOG_DIR env var).
func WithLogDir(dir string) Option {
	return func(o *resolvedOptions) { o.logDir = dir }
}

// WithSQLitePath overrides the durable event store path from config
// (MIHARI_SQLITE_PATH env var).
func WithSQLitePath(path string) Option {
	return func(o *resolvedOptions) { o.sqlitePath = path }
}

// WithCollectInterval overrides the system sampling interval from config
// (MIHARI_COLLECT_INTERVAL env var).
func WithCollectInterval(d time.Duration) Option {
	return func(o *resolvedOptions) { o.collectInterval = d }
}

// WithSampler replaces the local-host system sampler.
func WithSampler(s metrics.Sampler) Option {
	return func(o *resolvedOptions) { o.sampler = s }
}

// WithSink registers an additional event sink alongside the configured ones.
// Multiple sinks may be registered; all receive every event.
func WithSink(s eventlog.Sink) Option {
	return func(o *resolvedOptions) { o.sinks = append(o.sinks, s) }
}

// WithConnector registers an additional notification connector alongside
// the ones enabled by config. Multiple connectors may be registered.
func WithConnector(c integrations.Connector) Option {
	return func(o *resolvedOptions) { o.connectors = append(o.connectors, c) }
}
