package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDaemonArgs(t *testing.T) {
	in := []string{"serve", "--daemonize", "--pidfile", "/tmp/g.pid", "--logfile=/tmp/g.log", "--listen", ":9000", "--watch"}
	got := daemonArgs(in)
	want := []string{"serve", "--listen", ":9000", "--watch"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("daemonArgs = %v, want %v", got, want)
	}
}

func TestWritePidFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "guard.pid")
	if err := writePidFile(p, 4321); err != nil {
		t.Fatalf("writePidFile: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "4321\n" {
		t.Fatalf("pidfile content = %q", b)
	}
}
