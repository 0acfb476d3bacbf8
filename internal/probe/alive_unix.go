//go:build !windows

package probe

import "golang.org/x/sys/unix"

// alive asks the kernel for the process group of pid. ESRCH (no such process)
// and every other failure are reported as not alive.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := unix.Getpgid(pid)
	return err == nil
}

func pgid(pid int) int {
	if pid <= 0 {
		return 0
	}
	g, err := unix.Getpgid(pid)
	if err != nil {
		return 0
	}
	return g
}
