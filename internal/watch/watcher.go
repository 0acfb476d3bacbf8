// Package watch turns filesystem activity under an application root into
// lifecycle file-change and file-deletion callbacks.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Config selects what to watch.
type Config struct {
	Root     string
	Patterns []string // include globs relative to Root; empty means DefaultPatterns
	Ignore   []string // extra exclude globs, on top of DefaultExcludes
	Debounce time.Duration
}

// Handler receives debounced, root-relative paths.
type Handler interface {
	OnFileChange(ctx context.Context, paths []string) error
	OnFileDeletion(ctx context.Context, paths []string) error
}

// Watcher recursively watches Root with fsnotify.
type Watcher struct {
	root    string
	wait    time.Duration
	matcher *Matcher
	handler Handler
	logger  *slog.Logger
	ready   chan struct{}
}

func New(cfg Config, h Handler, logger *slog.Logger) (*Watcher, error) {
	if h == nil {
		return nil, errors.New("watch: nil handler")
	}
	root := cfg.Root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	if st, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	} else if !st.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", abs)
	}
	include := cfg.Patterns
	if len(include) == 0 {
		include = DefaultPatterns
	}
	m, err := NewMatcher(include, append(append([]string{}, DefaultExcludes...), cfg.Ignore...))
	if err != nil {
		return nil, err
	}
	wait := cfg.Debounce
	if wait < 0 {
		wait = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		root:    abs,
		wait:    wait,
		matcher: m,
		handler: h,
		logger:  logger.With(slog.String("component", "watch"), slog.String("root", abs)),
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once the initial directory tree is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx is cancelled. Handler errors are logged and do not
// stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addTree(fsw, w.root, nil); err != nil {
		return err
	}
	close(w.ready)
	w.logger.Info("file watcher started")

	pending := newBatch()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped")
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if w.handle(fsw, ev, pending) {
				timer.Reset(w.wait)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			w.logger.Error("file watcher error", "error", err)
		case <-timer.C:
			if !pending.empty() {
				w.dispatch(ctx, pending)
			}
		}
	}
}

// handle records ev into pending and reports whether it matched.
func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event, pending *batch) bool {
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}
	switch {
	case ev.Has(fsnotify.Create):
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			if err := w.addTree(fsw, ev.Name, pending); err != nil {
				w.logger.Warn("failed to watch new directory", "path", rel, "error", err)
			}
			return !pending.empty()
		}
		if !w.matcher.Match(rel) {
			return false
		}
		pending.change(rel)
	case ev.Has(fsnotify.Write):
		if !w.matcher.Match(rel) {
			return false
		}
		pending.change(rel)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if !w.matcher.Match(rel) {
			return false
		}
		pending.remove(rel)
	default:
		return false
	}
	w.logger.Debug("file event", "op", ev.Op.String(), "path", rel)
	return true
}

func (w *Watcher) dispatch(ctx context.Context, pending *batch) {
	changed, deleted := pending.take()
	if len(changed) > 0 {
		if err := w.handler.OnFileChange(ctx, changed); err != nil {
			w.logger.Warn("file change handler failed", "paths", changed, "error", err)
		}
	}
	if len(deleted) > 0 {
		if err := w.handler.OnFileDeletion(ctx, deleted); err != nil {
			w.logger.Warn("file deletion handler failed", "paths", deleted, "error", err)
		}
	}
}

// addTree watches dir and every non-hidden, non-excluded directory below it.
// Files already present are recorded into pending when it is non-nil, since
// they may have been written before the watch was in place.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string, pending *batch) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			if pending != nil {
				if rel, ok := w.rel(p); ok && w.matcher.Match(rel) {
					pending.change(rel)
				}
			}
			return nil
		}
		if p != w.root {
			rel, _ := w.rel(p)
			if strings.HasPrefix(d.Name(), ".") || w.matcher.Excluded(rel) {
				return filepath.SkipDir
			}
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) rel(p string) (string, bool) {
	r, err := filepath.Rel(w.root, p)
	if err != nil || r == "." || strings.HasPrefix(r, "..") {
		return "", false
	}
	return filepath.ToSlash(r), true
}
