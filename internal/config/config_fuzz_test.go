package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FuzzLoadTOML writes arbitrary scalar values into a small TOML file and
// checks the loader never panics.
func FuzzLoadTOML(f *testing.F) {
	f.Add("tmp/pids/unicorn.pid", "QUIT", "30s", true)
	f.Add("", "USR2", "-5s", false)
	f.Add("x.pid", "", "bogus", true)

	f.Fuzz(func(t *testing.T, pidfile, quit, timeout string, bundler bool) {
		clean := func(s string) string {
			return strings.NewReplacer("\"", "", "\\", "", "\n", "", "\r", "").Replace(s)
		}
		var b strings.Builder
		b.WriteString("pidfile = \"" + clean(pidfile) + "\"\n")
		if bundler {
			b.WriteString("bundler = true\n")
		} else {
			b.WriteString("bundler = false\n")
		}
		b.WriteString("[signals]\nquit = \"" + clean(quit) + "\"\n")
		b.WriteString("[stop]\ntimeout = \"" + clean(timeout) + "\"\n")
		path := filepath.Join(t.TempDir(), "fuzz.toml")
		if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
			t.Skip()
		}
		fc, err := Load(path)
		if err == nil {
			_, _ = fc.Lifecycle()
		}
	})
}
