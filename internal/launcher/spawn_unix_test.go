//go:build !windows

package launcher

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func waitUntil(timeout, step time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(step)
	}
	return cond()
}

func TestDetachedSpawnNewSession(t *testing.T) {
	d := &Detached{}
	pid, err := d.Spawn(exec.Command("sleep", "2"))
	require.NoError(t, err)
	defer func() { _ = unix.Kill(pid, unix.SIGKILL) }()

	sid, err := unix.Getsid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, sid, "child must lead its own session")
	own, _ := unix.Getsid(0)
	assert.NotEqual(t, own, sid)
}

func TestDetachedSpawnReapsChild(t *testing.T) {
	d := &Detached{}
	pid, err := d.Spawn(exec.Command("/bin/sh", "-c", "exit 0"))
	require.NoError(t, err)
	// Once reaped the pid disappears from the process table.
	ok := waitUntil(2*time.Second, 10*time.Millisecond, func() bool {
		_, err := unix.Getpgid(pid)
		return err != nil
	})
	assert.True(t, ok, "exited child should be reaped")
}

func TestDetachedSpawnWritesLogFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "log", "unicorn.log")
	d := &Detached{LogFile: logFile}
	_, err := d.Spawn(exec.Command("/bin/sh", "-c", "echo booted"))
	require.NoError(t, err)
	ok := waitUntil(2*time.Second, 10*time.Millisecond, func() bool {
		b, err := os.ReadFile(logFile)
		return err == nil && strings.Contains(string(b), "booted")
	})
	assert.True(t, ok, "child output should land in the log file")
}

func TestLauncherMissingExecutable(t *testing.T) {
	l := New(Options{Executable: "__definitely_not_a_real_server__"}, nil, nil, nil)
	_, err := l.Start(context.Background())
	require.ErrorIs(t, err, ErrSpawn)
}
