//go:build windows

package probe

import gopsproc "github.com/shirou/gopsutil/v4/process"

// alive has no process-group notion on Windows; fall back to a table lookup.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}

func pgid(int) int { return 0 }
