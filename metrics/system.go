package metrics

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

// System metric names recorded by the collector each tick.
const (
	MetricCPUPercent    = "system.cpu_percent"
	MetricMemoryPercent = "system.memory_percent"
	MetricMemoryUsedMB  = "system.memory_used_mb"
	MetricDiskPercent   = "system.disk_percent"
	MetricNetBytesSent  = "system.net_bytes_sent"
	MetricNetBytesRecv  = "system.net_bytes_recv"
)

// SystemSample is one point-in-time host reading.
type SystemSample struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedMB  float64
	DiskPercent   float64
	NetBytesSent  float64 // cumulative since boot
	NetBytesRecv  float64 // cumulative since boot
}

// Sampler supplies host readings for the collector. The production
// implementation reads from the OS; tests substitute a fixed sampler.
type Sampler interface {
	Sample() (SystemSample, error)
}

// hostSampler reads host metrics via gopsutil.
type hostSampler struct {
	diskPath string
}

// NewHostSampler returns a Sampler backed by the local OS. diskPath is the
// mount point measured for disk usage; empty defaults to "/".
func NewHostSampler(diskPath string) Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &hostSampler{diskPath: diskPath}
}

func (h *hostSampler) Sample() (SystemSample, error) {
	var out SystemSample

	cpuPercents, err := cpu.Percent(0, false)
	if err != nil {
		return out, fmt.Errorf("metrics: cpu sample: %w", err)
	}
	if len(cpuPercents) > 0 {
		out.CPUPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return out, fmt.Errorf("metrics: memory sample: %w", err)
	}
	out.MemoryPercent = vm.UsedPercent
	out.MemoryUsedMB = float64(vm.Used) / (1024 * 1024)

	du, err := disk.Usage(h.diskPath)
	if err != nil {
		return out, fmt.Errorf("metrics: disk sample: %w", err)
	}
	out.DiskPercent = du.UsedPercent

	counters, err := net.IOCounters(false)
	if err != nil {
		return out, fmt.Errorf("metrics: network sample: %w", err)
	}
	if len(counters) > 0 {
		out.NetBytesSent = float64(counters[0].BytesSent)
		out.NetBytesRecv = float64(counters[0].BytesRecv)
	}

	return out, nil
}

// recordSample writes one host reading into the store, one unlabeled series
// per field.
func recordSample(st *Store, s SystemSample) {
	st.Record(MetricCPUPercent, s.CPUPercent, nil)
	st.Record(MetricMemoryPercent, s.MemoryPercent, nil)
	st.Record(MetricMemoryUsedMB, s.MemoryUsedMB, nil)
	st.Record(MetricDiskPercent, s.DiskPercent, nil)
	st.Record(MetricNetBytesSent, s.NetBytesSent, nil)
	st.Record(MetricNetBytesRecv, s.NetBytesRecv, nil)
}
