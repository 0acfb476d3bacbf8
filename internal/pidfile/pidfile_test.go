package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePID(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write pidfile: %v", err)
	}
}

func TestReadFirstLineOnly(t *testing.T) {
	pf := filepath.Join(t.TempDir(), "unicorn.pid")
	writePID(t, pf, " 4242 \ntrailing garbage\n")
	pid, err := Read(pf)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.pid"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestReadMalformed(t *testing.T) {
	pf := filepath.Join(t.TempDir(), "bad.pid")
	writePID(t, pf, "abc\n")
	_, err := Read(pf)
	if !errors.Is(err, ErrInvalidPID) {
		t.Fatalf("expected ErrInvalidPID, got %v", err)
	}
}

func TestResolvePidfileOverridesCached(t *testing.T) {
	pf := filepath.Join(t.TempDir(), "unicorn.pid")
	s := New(pf)
	for _, want := range []int{1, 77, 31337, 4194304} {
		writePID(t, pf, strconv.Itoa(want)+"\n")
		got, ok := s.Resolve(12)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestResolveFallsBackToCached(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.pid"))

	pid, ok := s.Resolve(0)
	assert.False(t, ok)
	assert.Equal(t, 0, pid)

	pid, ok = s.Resolve(555)
	assert.True(t, ok)
	assert.Equal(t, 555, pid)
	assert.False(t, s.Exists())
}

func TestResolveMalformedIsSentinel(t *testing.T) {
	pf := filepath.Join(t.TempDir(), "partial.pid")
	s := New(pf)
	cases := []string{"", "\n", "12ab", "-5\n", "0"}
	for _, c := range cases {
		writePID(t, pf, c)
		pid, ok := s.Resolve(999)
		if ok {
			t.Fatalf("content %q: expected no usable pid, got %d", c, pid)
		}
		if pid > 0 {
			t.Fatalf("content %q: cached value leaked through: %d", c, pid)
		}
	}
	assert.True(t, s.Exists())
}

func TestResolveEmptyPath(t *testing.T) {
	pid, ok := Store{}.Resolve(10)
	assert.True(t, ok)
	assert.Equal(t, 10, pid)
}
