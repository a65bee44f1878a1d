// Package resource measures system and GPU memory around model
// invocations. Probes are absent-safe: anything unavailable reports zero.
package resource

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/longregen/refinery/internal/ports"
)

// Probe samples memory usage. GPU readings come from nvidia-smi; hosts
// without it (or without a GPU) report zero without logging per call.
// Snapshot is safe for concurrent use.
type Probe struct {
	gpuUnavailable atomic.Bool
}

func NewProbe() *Probe {
	return &Probe{}
}

// Snapshot captures current memory usage. It never fails; unavailable
// sources contribute zeros.
func (p *Probe) Snapshot(ctx context.Context) ports.ResourceSnapshot {
	var snap ports.ResourceSnapshot

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.SystemUsed = int64(vm.Used)
	}
	snap.GPUUsedMiB = p.gpuMemory(ctx)

	return snap
}

// gpuMemory returns the GPU memory in use in MiB, or zero when nvidia-smi
// is missing or fails. The first failure is logged once.
func (p *Probe) gpuMemory(ctx context.Context) float64 {
	if p.gpuUnavailable.Load() {
		return 0
	}

	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=memory.used", "--format=csv,noheader,nounits").Output()
	if err != nil {
		if p.gpuUnavailable.CompareAndSwap(false, true) {
			slog.Debug("gpu probe unavailable, reporting zero", "error", err)
		}
		return 0
	}

	return parseGPUMemory(string(out))
}

// parseGPUMemory sums the per-GPU readings: nvidia-smi emits one line
// per device. Unparseable lines contribute zero.
func parseGPUMemory(out string) float64 {
	var total float64
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		value, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			continue
		}
		total += value
	}
	return total
}
