package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings for the supervisor's own log file.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Format selects the slog handler.
type Format string

const (
	FormatColor Format = "color"
	FormatText  Format = "text"
	FormatJSON  Format = "json"
)

// Config describes how the supervisor logs.
type Config struct {
	Level      string // debug, info, warn, error
	Format     Format
	TimeStamps bool
	File       FileConfig
}

// FileConfig enables an additional rotated log file. Rotation parameters
// follow lumberjack semantics.
type FileConfig struct {
	Path       string
	MaxSizeMB  int  // megabytes before rotation (default 10)
	MaxBackups int  // number of backups to keep (default 3)
	MaxAgeDays int  // days to keep (default 7)
	Compress   bool // gzip rotated files
}

// Writer returns a rotating writer for Path, or nil when Path is empty.
func (f FileConfig) Writer() io.WriteCloser {
	if strings.TrimSpace(f.Path) == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   f.Path,
		MaxSize:    valOr(f.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(f.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(f.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   f.Compress,
	}
}

// ParseLevel maps a level name to slog.Level; unknown names become info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w and, if configured, to the rotated file.
// The returned closer releases the file and is never nil.
func New(c Config, w io.Writer) (*slog.Logger, io.Closer) {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	if !c.TimeStamps {
		opts.ReplaceAttr = dropTime
	}

	var closer io.Closer = nopCloser{}
	out := w
	fw := c.File.Writer()
	if fw != nil {
		closer = fw
	}

	var h slog.Handler
	switch c.Format {
	case FormatJSON:
		if fw != nil {
			out = io.MultiWriter(w, fw)
		}
		h = slog.NewJSONHandler(out, opts)
	case FormatText:
		if fw != nil {
			out = io.MultiWriter(w, fw)
		}
		h = slog.NewTextHandler(out, opts)
	default:
		h = NewColorTextHandler(w, opts, c.TimeStamps)
		if fw != nil {
			// Escape codes stay out of the file.
			h = fanout{h, slog.NewTextHandler(fw, opts)}
		}
	}
	return slog.New(h), closer
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
