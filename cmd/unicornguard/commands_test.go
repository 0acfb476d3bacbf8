package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/unicornguard"
	"github.com/loykin/unicornguard/internal/launcher"
	"github.com/loykin/unicornguard/internal/lifecycle"
	"github.com/loykin/unicornguard/internal/probe"
	"github.com/loykin/unicornguard/pkg/client"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "unicornguard.toml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

// fakeAPI serves the unicornguard HTTP API with canned answers.
func fakeAPI(t *testing.T, calls *[]string, opStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for _, op := range []string{"start", "stop", "reload"} {
		mux.HandleFunc("/api/"+op, func(w http.ResponseWriter, r *http.Request) {
			*calls = append(*calls, r.Method+" "+r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(opStatus)
			if opStatus != http.StatusOK {
				_ = json.NewEncoder(w).Encode(client.ErrorResponse{Error: "unicorn is not running"})
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
	}
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(client.Status{PID: 321, Alive: true, PIDFile: "/app/tmp/pids/unicorn.pid", PIDFileExists: true})
	})
	mux.HandleFunc("/api/debug/process", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(client.ProcessInfo{PID: 321, PGID: 321, Alive: true, Name: "ruby"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOperationRemote(t *testing.T) {
	var calls []string
	srv := fakeAPI(t, &calls, http.StatusOK)
	var out bytes.Buffer
	c := newCommand(&out)

	for _, op := range []operation{opStart, opReload, opStop} {
		if err := c.Operation(context.Background(), op, RemoteFlags{APIUrl: srv.URL + "/api"}); err != nil {
			t.Fatalf("%s: %v", op, err)
		}
	}
	want := []string{"POST /api/start", "POST /api/reload", "POST /api/stop"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	if !strings.Contains(out.String(), "reload: ok") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestOperationRemoteNotRunning(t *testing.T) {
	var calls []string
	srv := fakeAPI(t, &calls, http.StatusConflict)
	c := newCommand(io.Discard)
	err := c.Operation(context.Background(), opReload, RemoteFlags{APIUrl: srv.URL + "/api"})
	if !errors.Is(err, client.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStatusRemoteJSON(t *testing.T) {
	var calls []string
	srv := fakeAPI(t, &calls, http.StatusOK)
	var out bytes.Buffer
	c := newCommand(&out)
	err := c.Status(context.Background(), StatusFlags{
		RemoteFlags: RemoteFlags{APIUrl: srv.URL + "/api"},
		JSON:        true,
		Process:     true,
	})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var got statusView
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if got.PID != 321 || !got.Alive || got.Process == nil || got.Process.Name != "ruby" {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestStatusRemoteText(t *testing.T) {
	var calls []string
	srv := fakeAPI(t, &calls, http.StatusOK)
	var out bytes.Buffer
	c := newCommand(&out)
	if err := c.Status(context.Background(), StatusFlags{RemoteFlags: RemoteFlags{APIUrl: srv.URL + "/api"}}); err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, s := range []string{"state:   running", "pid:     321", "exists=true"} {
		if !strings.Contains(out.String(), s) {
			t.Fatalf("output %q missing %q", out.String(), s)
		}
	}
}

// localCommand wires a command to a supervisor whose server is simulated.
func localCommand(t *testing.T, out io.Writer) (*command, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix signals required")
	}
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, `
work_dir = "`+filepath.ToSlash(dir)+`"
pidfile = "tmp/pids/unicorn.pid"

[notify]
console = false
`)
	pidPath := filepath.Join(dir, "tmp", "pids", "unicorn.pid")
	var mu sync.Mutex
	alive := map[int]bool{}

	c := newCommand(out)
	c.global.ConfigPath = cfgPath
	c.newSupervisor = func(cfg *unicornguard.Config) (*unicornguard.Supervisor, error) {
		return unicornguard.New(cfg,
			unicornguard.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			unicornguard.WithRegisterer(prometheus.NewRegistry()),
			unicornguard.WithControllerOptions(
				lifecycle.WithSpawner(launcher.SpawnerFunc(func(*exec.Cmd) (int, error) {
					if err := os.MkdirAll(filepath.Dir(pidPath), 0o755); err != nil {
						return 0, err
					}
					mu.Lock()
					alive[2024] = true
					mu.Unlock()
					return 2024, os.WriteFile(pidPath, []byte(strconv.Itoa(2024)), 0o644)
				})),
				lifecycle.WithProbe(probe.Func(func(pid int) bool {
					mu.Lock()
					defer mu.Unlock()
					return alive[pid]
				})),
			),
		)
	}
	return c, pidPath
}

func TestOperationLocalStartThenStatus(t *testing.T) {
	var out bytes.Buffer
	c, pidPath := localCommand(t, &out)

	if err := c.Operation(context.Background(), opStart, RemoteFlags{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("pidfile not written: %v", err)
	}
	if err := c.Status(context.Background(), StatusFlags{}); err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out.String(), "state:   running") || !strings.Contains(out.String(), "pid:     2024") {
		t.Fatalf("unexpected status output: %q", out.String())
	}
}

func TestOperationLocalReloadNotRunning(t *testing.T) {
	c, _ := localCommand(t, io.Discard)
	err := c.Operation(context.Background(), opReload, RemoteFlags{})
	if !errors.Is(err, unicornguard.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestOperationBadConfig(t *testing.T) {
	c := newCommand(io.Discard)
	c.global.ConfigPath = filepath.Join(t.TempDir(), "missing.toml")
	if err := c.Operation(context.Background(), opStart, RemoteFlags{}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestWatchReturnsOnCancel(t *testing.T) {
	c, _ := localCommand(t, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Watch(ctx, WatchFlags{NoStart: true, KeepRunning: true}); err != nil {
		t.Fatalf("watch: %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	c, _ := localCommand(t, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Serve(ctx, ServeFlags{Listen: "127.0.0.1:0", Watch: true}); err != nil {
		t.Fatalf("serve: %v", err)
	}
}
