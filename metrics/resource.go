package metrics

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// Resource is one sample of system load.
type Resource struct {
	CPUPercent       float64
	GPUMemoryMB      float64
	GPUMemoryPercent float64
}

// Sampler reads CPU load via gopsutil and GPU memory from
// nvidia-smi. Hosts without an NVIDIA GPU just report zeros.
type Sampler struct {
	hasGPU bool
}

func NewSampler() *Sampler {
	_, err := exec.LookPath("nvidia-smi")
	return &Sampler{hasGPU: err == nil}
}

func (s *Sampler) Sample(ctx context.Context) Resource {
	var r Resource
	// Non-blocking percent since the last call.
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		r.CPUPercent = percents[0]
	}
	if s.hasGPU {
		r.GPUMemoryMB, r.GPUMemoryPercent = sampleGPU(ctx)
	}
	return r
}

func sampleGPU(ctx context.Context) (usedMB, usedPercent float64) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=memory.used,memory.total",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, 0
	}
	return parseGPULine(string(out))
}

func parseGPULine(out string) (usedMB, usedPercent float64) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, 0
	}
	used, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	total, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || total <= 0 {
		return 0, 0
	}
	return used, used / total * 100
}
