package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSampler struct {
	sample SystemSample
	err    error
	calls  atomic.Int64
}

func (s *stubSampler) Sample() (SystemSample, error) {
	s.calls.Add(1)
	return s.sample, s.err
}

func TestCollectorRecordsImmediatelyOnStart(t *testing.T) {
	st := NewStore(0)
	sampler := &stubSampler{sample: SystemSample{CPUPercent: 12.5, MemoryPercent: 40}}
	c := NewCollector(st, nil, sampler, slog.New(slog.DiscardHandler), time.Hour)

	c.Start(context.Background())
	defer c.Stop(context.Background())

	require.Eventually(t, func() bool {
		_, ok := st.Stats(MetricCPUPercent, time.Minute)
		return ok
	}, time.Second, 5*time.Millisecond)

	stats, ok := st.Stats(MetricCPUPercent, time.Minute)
	require.True(t, ok)
	assert.Equal(t, 12.5, stats.Latest)

	stats, ok = st.Stats(MetricMemoryPercent, time.Minute)
	require.True(t, ok)
	assert.Equal(t, 40.0, stats.Latest)
}

func TestCollectorEvaluatesRulesEachTick(t *testing.T) {
	st := NewStore(0)
	eval := NewEvaluator(st, slog.New(slog.DiscardHandler), 0)

	fired := make(chan Alert, 1)
	_, err := eval.AddRule(MetricCPUPercent, 90, CondGreaterThan, time.Hour, func(a Alert) {
		fired <- a
	})
	require.NoError(t, err)

	sampler := &stubSampler{sample: SystemSample{CPUPercent: 99}}
	c := NewCollector(st, eval, sampler, slog.New(slog.DiscardHandler), time.Hour)
	c.Start(context.Background())
	defer c.Stop(context.Background())

	select {
	case a := <-fired:
		assert.Equal(t, MetricCPUPercent, a.Metric)
		assert.Equal(t, 99.0, a.Value)
	case <-time.After(time.Second):
		t.Fatal("alert did not fire on first tick")
	}
}

func TestCollectorSkipsFailedSample(t *testing.T) {
	st := NewStore(0)
	sampler := &stubSampler{err: errors.New("proc unavailable")}
	c := NewCollector(st, nil, sampler, slog.New(slog.DiscardHandler), time.Hour)

	c.Start(context.Background())
	require.Eventually(t, func() bool {
		return sampler.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)
	c.Stop(context.Background())

	assert.Empty(t, st.Names())
}

func TestCollectorStopJoinsLoop(t *testing.T) {
	st := NewStore(0)
	c := NewCollector(st, nil, &stubSampler{}, slog.New(slog.DiscardHandler), 10*time.Millisecond)

	c.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Stop(ctx)

	select {
	case <-c.done:
	default:
		t.Fatal("collector loop still running after Stop")
	}
}

func TestRecordSample(t *testing.T) {
	st := NewStore(0)
	recordSample(st, SystemSample{
		CPUPercent:    10,
		MemoryPercent: 20,
		MemoryUsedMB:  512,
		DiskPercent:   30,
		NetBytesSent:  1000,
		NetBytesRecv:  2000,
	})

	assert.Equal(t, []string{
		MetricCPUPercent,
		MetricDiskPercent,
		MetricMemoryPercent,
		MetricMemoryUsedMB,
		MetricNetBytesRecv,
		MetricNetBytesSent,
	}, st.Names())
}
