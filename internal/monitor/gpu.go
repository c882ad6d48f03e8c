package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GPUMetrics is one sample for a single GPU.
type GPUMetrics struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	UtilizationGPU    float64 `json:"utilization_gpu"`
	UtilizationMemory float64 `json:"utilization_memory"`
	MemoryUsedMB      float64 `json:"memory_used_mb"`
	MemoryTotalMB     float64 `json:"memory_total_mb"`
	TemperatureC      float64 `json:"temperature_c"`
	PowerDrawW        float64 `json:"power_draw_w"`
	PowerLimitW       float64 `json:"power_limit_w"`
}

var gpuQueryFields = []string{
	"index",
	"name",
	"utilization.gpu",
	"utilization.memory",
	"memory.used",
	"memory.total",
	"temperature.gpu",
	"power.draw",
	"power.limit",
}

// GPUStats samples every visible NVIDIA GPU via nvidia-smi. A host without
// the tool or without GPUs reports an empty slice rather than an error.
func GPUStats(ctx context.Context, logger *slog.Logger) []GPUMetrics {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu="+strings.Join(gpuQueryFields, ","),
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		logger.Debug("nvidia-smi unavailable", "err", err)
		return []GPUMetrics{}
	}
	return parseGPUCSV(string(out))
}

func parseGPUCSV(out string) []GPUMetrics {
	gpus := []GPUMetrics{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != len(gpuQueryFields) {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		gpus = append(gpus, GPUMetrics{
			Index:             int(parseMetric(fields[0])),
			Name:              fields[1],
			UtilizationGPU:    parseMetric(fields[2]),
			UtilizationMemory: parseMetric(fields[3]),
			MemoryUsedMB:      parseMetric(fields[4]),
			MemoryTotalMB:     parseMetric(fields[5]),
			TemperatureC:      parseMetric(fields[6]),
			PowerDrawW:        parseMetric(fields[7]),
			PowerLimitW:       parseMetric(fields[8]),
		})
	}
	return gpus
}

// parseMetric tolerates the "[N/A]" placeholders nvidia-smi emits for
// unsupported fields.
func parseMetric(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// GPUProcesses lists compute processes currently using the GPUs.
func GPUProcesses(ctx context.Context, logger *slog.Logger) []GPUProcess {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-compute-apps=pid,process_name,used_memory",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		logger.Debug("nvidia-smi unavailable", "err", err)
		return []GPUProcess{}
	}

	procs := []GPUProcess{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			continue
		}
		procs = append(procs, GPUProcess{
			PID:          int(parseMetric(strings.TrimSpace(fields[0]))),
			Name:         strings.TrimSpace(fields[1]),
			MemoryUsedMB: parseMetric(strings.TrimSpace(fields[2])),
		})
	}
	return procs
}

// GPUProcess is one compute process occupying GPU memory.
type GPUProcess struct {
	PID          int     `json:"pid"`
	Name         string  `json:"name"`
	MemoryUsedMB float64 `json:"memory_used_mb"`
}

// Summary formats a one-line overview, used by the MCP tools.
func (g GPUMetrics) Summary() string {
	return fmt.Sprintf("GPU %d (%s): %.0f%% util, %.0f/%.0f MB, %.0fC",
		g.Index, g.Name, g.UtilizationGPU, g.MemoryUsedMB, g.MemoryTotalMB, g.TemperatureC)
}
