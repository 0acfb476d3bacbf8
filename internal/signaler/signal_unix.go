//go:build !windows

package signaler

import (
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	sigQuit = unix.SIGQUIT
	sigHup  = unix.SIGHUP
	sigKill = unix.SIGKILL
)

func sendSignal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

// ParseSignal accepts names such as "QUIT", "sigquit" or "SIGUSR2".
func ParseSignal(name string) (syscall.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return 0, fmt.Errorf("empty signal name")
	}
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig := unix.SignalNum(n)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}
