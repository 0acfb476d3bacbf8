//go:build windows

package probe

// procStartUnix defers to gopsutil on Windows.
func procStartUnix(int) int64 { return 0 }
