package launcher

import (
	"os/exec"
	"strings"
)

const (
	DefaultExecutable = "unicorn_rails"
	DefaultWrapper    = "bundle exec"
)

// Options describes how the managed server is launched.
type Options struct {
	Bundler       bool     // prefix the command with WrapperPrefix
	Daemonize     bool     // pass -D so the server daemonizes itself
	ConfigPath    string   // passed as -c <path>
	Executable    string   // server executable, default unicorn_rails
	WrapperPrefix string   // dependency isolation prefix, default "bundle exec"
	WorkDir       string   // optional working directory
	LogFile       string   // optional file receiving the child's stdout/stderr
	Env           []string // extra KEY=VALUE entries appended to the parent env
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.Executable) == "" {
		o.Executable = DefaultExecutable
	}
	if strings.TrimSpace(o.WrapperPrefix) == "" {
		o.WrapperPrefix = DefaultWrapper
	}
	return o
}

// CommandLine returns the ordered command tokens:
// [wrapper] executable "-c <config>" [-D].
func CommandLine(o Options) []string {
	o = o.withDefaults()
	tokens := make([]string, 0, 4)
	if o.Bundler {
		tokens = append(tokens, o.WrapperPrefix)
	}
	tokens = append(tokens, o.Executable)
	if o.ConfigPath != "" {
		tokens = append(tokens, "-c "+o.ConfigPath)
	}
	if o.Daemonize {
		tokens = append(tokens, "-D")
	}
	return tokens
}

// BuildCommand turns command tokens into an *exec.Cmd. Plain words are
// executed directly; a shell is only involved when the line contains shell
// metacharacters or is already an explicit "sh -c" invocation.
func BuildCommand(tokens []string) *exec.Cmd {
	cmdStr := strings.TrimSpace(strings.Join(tokens, " "))
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if afterC, ok := parseExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", afterC)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// parseExplicitShell detects "sh -c <ARG>" prefixes and returns ARG with one
// pair of surrounding quotes removed.
func parseExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}
