// Command mihari runs a short self-contained demonstration of the
// telemetry suite: it starts a hub, simulates one agent doing work, and
// prints the resulting dashboard, health snapshot, and reasoning
// transcript.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harukaze-ai/mihari"
	"github.com/harukaze-ai/mihari/eventlog"
	"github.com/harukaze-ai/mihari/metrics"
	"github.com/harukaze-ai/mihari/monitor"
	"github.com/harukaze-ai/mihari/reasoning"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("MIHARI_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	hub, err := mihari.New(
		mihari.WithLogger(logger),
		mihari.WithVersion(version),
		mihari.WithCollectInterval(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("hub: %w", err)
	}

	hub.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hub.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	// Alert when simulated task latency spikes.
	if _, err := hub.AddAlertRule(monitor.MetricTaskDuration, 400, metrics.CondGreaterThan, 5*time.Minute, nil); err != nil {
		return fmt.Errorf("alert rule: %w", err)
	}

	const agentID = "demo-agent"
	mon := hub.Monitor()
	mon.TrackAgentStart(agentID)

	if err := simulateWork(ctx, hub, agentID); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	mon.TrackAgentStop(agentID)

	// Let the collector take a couple of system samples and evaluate the
	// alert rules before reporting.
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(5 * time.Second):
	}

	return report(hub, agentID)
}

// simulateWork drives one agent through tasks, model calls, an error,
// and a reasoning session.
func simulateWork(ctx context.Context, hub *mihari.Hub, agentID string) error {
	mon := hub.Monitor()
	log := hub.Events()

	log.LogEvent(agentID, eventlog.EventTaskStarted, "research task started")
	mon.TrackTaskDuration(agentID, "research", 220*time.Millisecond)
	mon.TrackLLMCall(agentID, monitor.LLMCall{
		Model:      "gpt-4o",
		TokensUsed: 1430,
		Duration:   820 * time.Millisecond,
	})
	log.LogEvent(agentID, eventlog.EventTaskCompleted, "research task completed",
		eventlog.WithDuration(220*time.Millisecond))

	// One slow task to trip the latency alert.
	mon.TrackTaskDuration(agentID, "summarise", 650*time.Millisecond)
	mon.TrackError(agentID, "rate_limit")

	return hub.Reason(ctx, agentID, "decide on a retry strategy", func(s *reasoning.Session) error {
		s.Think("the provider returned 429 twice in the last minute").
			Decide("how to back off", []string{"fixed delay", "exponential backoff"},
				"exponential backoff", "repeated 429s suggest sustained pressure").
			Conclude("retry with exponential backoff capped at one minute", reasoning.WithConfidence(0.8))
		return nil
	})
}

// report prints the aggregated views to stdout.
func report(hub *mihari.Hub, agentID string) error {
	dashboard := hub.Monitor().AgentDashboard(agentID)
	health := hub.Monitor().SystemHealth()

	out, err := json.MarshalIndent(map[string]any{
		"dashboard": dashboard,
		"health":    health,
		"alerts":    hub.Alerts().History(10),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	fmt.Println(string(out))

	transcript, err := hub.Events().ExportReasoning(agentID, "", eventlog.FormatMarkdown)
	if err != nil {
		return fmt.Errorf("reasoning export: %w", err)
	}
	fmt.Println(string(transcript))
	return nil
}
