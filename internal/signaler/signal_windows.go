//go:build windows

package signaler

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

const (
	sigQuit = syscall.SIGQUIT
	sigHup  = syscall.SIGHUP
	sigKill = syscall.SIGKILL
)

var errUnsupported = errors.New("signal not supported on windows")

// sendSignal can only kill on Windows; graceful signals are reported as
// unsupported so Terminate escalates.
func sendSignal(pid int, sig syscall.Signal) error {
	if sig != syscall.SIGKILL {
		return errUnsupported
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func ParseSignal(name string) (syscall.Signal, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "SIG") {
	case "QUIT":
		return syscall.SIGQUIT, nil
	case "HUP":
		return syscall.SIGHUP, nil
	case "KILL":
		return syscall.SIGKILL, nil
	case "TERM":
		return syscall.SIGTERM, nil
	case "INT":
		return syscall.SIGINT, nil
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}
