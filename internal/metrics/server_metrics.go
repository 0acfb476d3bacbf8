package metrics

import (
	"fmt"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// ServerUsage is a point-in-time resource sample of the server master.
type ServerUsage struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	MemoryMB   float64 `json:"memory_mb"`
	NumThreads int32   `json:"num_threads"`
}

// SampleServer reads CPU and memory usage of pid.
func SampleServer(pid int) (ServerUsage, error) {
	u := ServerUsage{PID: pid}
	if pid <= 0 {
		return u, fmt.Errorf("invalid pid %d", pid)
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return u, err
	}
	if cpu, err := p.CPUPercent(); err == nil {
		u.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		u.MemoryRSS = mem.RSS
		u.MemoryMB = float64(mem.RSS) / 1024 / 1024
	}
	if n, err := p.NumThreads(); err == nil {
		u.NumThreads = n
	}
	return u, nil
}
