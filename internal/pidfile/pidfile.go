package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidPID is returned when the first line of a pidfile is not a number.
var ErrInvalidPID = errors.New("invalid PID in file")

// Read reads the pidfile at path and parses its first line as a PID.
// Anything after the first line is ignored; the managed server owns the format.
// A missing file is reported with an error wrapping fs.ErrNotExist.
func Read(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pidLine, _, _ := strings.Cut(string(b), "\n")
	pidStr := strings.TrimSpace(pidLine)
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, pidStr)
	}
	return pid, nil
}

// Store resolves the PID of the managed process. The file written by the
// server is preferred over any value held in memory, because the server may
// daemonize and fork twice, and the supervisor itself may have restarted.
type Store struct {
	Path string
}

func New(path string) Store { return Store{Path: path} }

// Resolve returns the authoritative PID given the previously cached one.
//
// When the pidfile exists its content always wins, even when it cannot be
// parsed (e.g. observed mid-write); in that case the sentinel 0 is returned.
// When it does not exist the cached value is returned unchanged. ok is false
// whenever the result is not a usable (positive) PID.
func (s Store) Resolve(cached int) (pid int, ok bool) {
	pid = cached
	if s.Path != "" {
		v, err := Read(s.Path)
		switch {
		case err == nil:
			pid = v
		case errors.Is(err, os.ErrNotExist):
			// keep cached
		default:
			pid = 0
		}
	}
	return pid, pid > 0
}

// Exists reports whether the pidfile is present on disk.
func (s Store) Exists() bool {
	if s.Path == "" {
		return false
	}
	_, err := os.Stat(s.Path)
	return err == nil
}
