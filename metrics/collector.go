package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/harukaze-ai/mihari/internal/telemetry"
)

// DefaultInterval is the collection tick when none is configured.
const DefaultInterval = 30 * time.Second

// Collector drives periodic host sampling and alert evaluation on a single
// background goroutine. All other store access stays on caller threads.
type Collector struct {
	store    *Store
	eval     *Evaluator
	sampler  Sampler
	logger   *slog.Logger
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCollector creates a collector. A nil sampler defaults to the local
// host; a non-positive interval falls back to DefaultInterval.
func NewCollector(store *Store, eval *Evaluator, sampler Sampler, logger *slog.Logger, interval time.Duration) *Collector {
	if sampler == nil {
		sampler = NewHostSampler("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Collector{
		store:    store,
		eval:     eval,
		sampler:  sampler,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the collection loop and registers OTEL gauges.
// The first sample is taken immediately rather than one interval in.
func (c *Collector) Start(ctx context.Context) {
	c.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.loop(loopCtx)
}

// Stop signals the loop to exit and waits for it, bounded by ctx.
func (c *Collector) Stop(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		c.logger.Warn("metrics: stop timed out waiting for collector loop")
	}
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick performs one collection pass. A failed host sample is logged and
// skipped; alert evaluation still runs on whatever data the store holds.
func (c *Collector) tick() {
	sample, err := c.sampler.Sample()
	if err != nil {
		c.logger.Warn("metrics: system sample failed, skipping tick", "error", err)
	} else {
		recordSample(c.store, sample)
	}

	if c.eval != nil {
		c.eval.Evaluate()
	}
}

// registerMetrics exposes collector health as OTEL observable gauges.
// No-ops when the global meter provider is unset.
func (c *Collector) registerMetrics() {
	meter := telemetry.Meter("mihari/metrics")

	_, _ = meter.Int64ObservableGauge("mihari.metrics.series",
		metric.WithDescription("Number of metric series currently retained"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(len(c.store.Names())))
			return nil
		}),
	)

	if c.eval != nil {
		_, _ = meter.Int64ObservableGauge("mihari.alerts.history",
			metric.WithDescription("Number of fired alerts currently retained"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(len(c.eval.History(0))))
				return nil
			}),
		)
	}
}
