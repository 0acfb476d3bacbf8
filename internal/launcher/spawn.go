package launcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Detached spawns children in their own session so they outlive the
// supervisor. The child is reaped in the background so a server that
// daemonizes (and whose launcher exits immediately) never lingers as a zombie.
type Detached struct {
	LogFile string
}

func (d *Detached) Spawn(cmd *exec.Cmd) (int, error) {
	out, err := d.output()
	if err != nil {
		return 0, err
	}
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out
	configureSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		_ = out.Close()
		return 0, err
	}
	pid := cmd.Process.Pid
	go func() {
		_ = cmd.Wait()
		_ = out.Close()
	}()
	return pid, nil
}

func (d *Detached) output() (io.WriteCloser, error) {
	if d.LogFile == "" {
		return os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if err := os.MkdirAll(filepath.Dir(d.LogFile), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	// #nosec G304
	f, err := os.OpenFile(d.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open child log: %w", err)
	}
	return f, nil
}
