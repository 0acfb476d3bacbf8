package client

import "time"

// ErrorResponse is the body of a failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Usage mirrors the resource sample attached to a live status.
type Usage struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	MemoryMB   float64 `json:"memory_mb"`
	NumThreads int32   `json:"num_threads"`
}

// Status is the supervised server state as reported by GET /status.
type Status struct {
	PID           int      `json:"pid"`
	Alive         bool     `json:"alive"`
	PIDFile       string   `json:"pid_file"`
	PIDFileExists bool     `json:"pid_file_exists"`
	Command       []string `json:"command"`
	Usage         *Usage   `json:"usage,omitempty"`
}

// ProcessInfo is returned by GET /debug/process.
type ProcessInfo struct {
	PID       int       `json:"pid"`
	PGID      int       `json:"pgid,omitempty"`
	Alive     bool      `json:"alive"`
	Name      string    `json:"name,omitempty"`
	Cmdline   string    `json:"cmdline,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}
