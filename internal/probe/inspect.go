package probe

import (
	"fmt"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Info is a best-effort snapshot of a live process used for status output.
type Info struct {
	PID       int       `json:"pid"`
	PGID      int       `json:"pgid,omitempty"`
	Alive     bool      `json:"alive"`
	Name      string    `json:"name,omitempty"`
	Cmdline   string    `json:"cmdline,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Inspect collects details about pid. A dead or unknown pid is not an error;
// the returned Info simply has Alive=false.
func Inspect(pid int) (Info, error) {
	info := Info{PID: pid}
	if pid <= 0 {
		return info, fmt.Errorf("invalid pid %d", pid)
	}
	info.Alive = alive(pid)
	if !info.Alive {
		return info, nil
	}
	info.PGID = pgid(pid)
	if start := procStartUnix(pid); start > 0 {
		info.StartedAt = time.Unix(start, 0)
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		// Process exited between the probe and the lookup.
		return info, nil
	}
	if name, err := p.Name(); err == nil {
		info.Name = name
	}
	if cmd, err := p.Cmdline(); err == nil {
		info.Cmdline = cmd
	}
	if info.StartedAt.IsZero() {
		if ms, err := p.CreateTime(); err == nil && ms > 0 {
			info.StartedAt = time.UnixMilli(ms)
		}
	}
	return info, nil
}
