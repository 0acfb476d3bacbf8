package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Severity classifies a notification.
type Severity string

const (
	Pending Severity = "pending"
	Success Severity = "success"
	Failed  Severity = "failed"
	Info    Severity = "info"
)

func (s Severity) String() string { return string(s) }

// ParseSeverity maps a name to a Severity; unknown names become Info.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case Pending:
		return Pending
	case Success:
		return Success
	case Failed:
		return Failed
	default:
		return Info
	}
}

// Notifier is a one-way, operator-facing sink.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Func adapts a function to Notifier.
type Func func(message string, severity Severity)

func (f Func) Notify(message string, severity Severity) { f(message, severity) }

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(string, Severity) {}

// Multi fans out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(message string, severity Severity) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, severity)
		}
	}
}

// Log writes notifications to a structured logger. Failures are logged at
// error level, everything else at info.
type Log struct {
	Logger *slog.Logger
}

func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{Logger: l.With(slog.String("component", "notify"))}
}

func (n *Log) Notify(message string, severity Severity) {
	level := slog.LevelInfo
	if severity == Failed {
		level = slog.LevelError
	}
	n.Logger.Log(context.Background(), level, message, "severity", severity.String())
}

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	stylePending = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var markers = map[Severity]string{
	Success: "✓",
	Failed:  "✗",
	Pending: "…",
	Info:    "•",
}

// Console prints styled one-line notifications, e.g. to stderr.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	showTime bool
	now      func() time.Time
}

func NewConsole(w io.Writer, showTime bool) *Console {
	return &Console{w: w, showTime: showTime, now: time.Now}
}

func (c *Console) Notify(message string, severity Severity) {
	var style lipgloss.Style
	switch severity {
	case Success:
		style = styleSuccess
	case Failed:
		style = styleFailed
	case Pending:
		style = stylePending
	default:
		style = styleInfo
	}
	marker, ok := markers[severity]
	if !ok {
		marker = markers[Info]
	}
	line := style.Render(marker+" "+message)
	if c.showTime {
		line = styleMuted.Render(c.now().Format("15:04:05")) + " " + line
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.w, line)
}
