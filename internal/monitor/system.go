package monitor

import (
	"log/slog"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// SystemMetrics is a host-level resource snapshot.
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	CPUCount      int     `json:"cpu_count"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskTotal     uint64  `json:"disk_total"`
	DiskUsed      uint64  `json:"disk_used"`
	DiskPercent   float64 `json:"disk_percent"`
	NetBytesSent  uint64  `json:"net_bytes_sent"`
	NetBytesRecv  uint64  `json:"net_bytes_recv"`
}

// SystemStats samples CPU, memory, disk and network counters. Individual
// probe failures degrade to zero values so one broken source does not take
// down the whole snapshot.
func SystemStats(logger *slog.Logger) SystemMetrics {
	var metrics SystemMetrics

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		metrics.CPUPercent = percents[0]
	} else if err != nil {
		logger.Debug("cpu sample failed", "err", err)
	}
	if count, err := cpu.Counts(true); err == nil {
		metrics.CPUCount = count
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryTotal = vm.Total
		metrics.MemoryUsed = vm.Used
		metrics.MemoryPercent = vm.UsedPercent
	} else {
		logger.Debug("memory sample failed", "err", err)
	}

	if usage, err := disk.Usage("/"); err == nil {
		metrics.DiskTotal = usage.Total
		metrics.DiskUsed = usage.Used
		metrics.DiskPercent = usage.UsedPercent
	} else {
		logger.Debug("disk sample failed", "err", err)
	}

	if counters, err := net.IOCounters(false); err == nil && len(counters) > 0 {
		metrics.NetBytesSent = counters[0].BytesSent
		metrics.NetBytesRecv = counters[0].BytesRecv
	} else if err != nil {
		logger.Debug("network sample failed", "err", err)
	}

	return metrics
}
