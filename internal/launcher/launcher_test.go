package launcher

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls   []string
	stopErr error
	pid     int
	spawnFn func(cmd *exec.Cmd) error
	cmds    []*exec.Cmd
}

func (r *recorder) Stop(context.Context) error {
	r.calls = append(r.calls, "stop")
	return r.stopErr
}

func (r *recorder) Spawn(cmd *exec.Cmd) (int, error) {
	r.calls = append(r.calls, "spawn")
	r.cmds = append(r.cmds, cmd)
	if r.spawnFn != nil {
		if err := r.spawnFn(cmd); err != nil {
			return 0, err
		}
	}
	return r.pid, nil
}

func TestStartStopsBeforeSpawnEveryTime(t *testing.T) {
	r := &recorder{pid: 321}
	l := New(Options{Bundler: true, ConfigPath: "config/unicorn.rb"}, r, r, nil)

	for i := 0; i < 3; i++ {
		sp, err := l.Start(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 321, sp.PID)
		assert.Equal(t, []string{"bundle exec", "unicorn_rails", "-c config/unicorn.rb"}, sp.Command)
	}
	assert.Equal(t, []string{"stop", "spawn", "stop", "spawn", "stop", "spawn"}, r.calls)
}

func TestStartAbortsWhenStopFails(t *testing.T) {
	boom := errors.New("still running")
	r := &recorder{stopErr: boom}
	l := New(Options{}, r, r, nil)

	_, err := l.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"stop"}, r.calls)
}

func TestStartSpawnFailureSurfaces(t *testing.T) {
	r := &recorder{spawnFn: func(*exec.Cmd) error { return errors.New("exec: not found") }}
	l := New(Options{}, r, r, nil)

	_, err := l.Start(context.Background())
	require.ErrorIs(t, err, ErrSpawn)
	assert.Contains(t, err.Error(), "unicorn_rails")
}

func TestStartAppliesWorkDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	r := &recorder{pid: 1}
	l := New(Options{WorkDir: dir, Env: []string{"RAILS_ENV=development"}}, r, r, nil)

	_, err := l.Start(context.Background())
	require.NoError(t, err)
	require.Len(t, r.cmds, 1)
	assert.Equal(t, dir, r.cmds[0].Dir)
	found := false
	for _, kv := range r.cmds[0].Env {
		if kv == "RAILS_ENV=development" {
			found = true
		}
	}
	assert.True(t, found, "extra env must be passed to the child")
}

func TestStartWithoutStopper(t *testing.T) {
	l := New(Options{}, nil, SpawnerFunc(func(*exec.Cmd) (int, error) { return 9, nil }), nil)
	sp, err := l.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, sp.PID)
	assert.Equal(t, "unicorn_rails", strings.Join(l.Command(), " "))
}
