// Package watch re-runs verification when a tasks document changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc performs one complete verification. reason is "initial" or the
// base name of the file that changed.
type RunFunc func(ctx context.Context, reason string) error

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last event before a run.
	Debounce time.Duration

	Logger *zap.Logger
}

// Watcher watches a set of files and calls a RunFunc sequentially after
// each debounced change.
type Watcher struct {
	files    map[string]bool
	debounce time.Duration
	run      RunFunc
	log      *zap.Logger
}

// New creates a watcher for paths.
func New(paths []string, opts Options, run RunFunc) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	if run == nil {
		return nil, errors.New("watch: nil run func")
	}
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = true
	}
	w := &Watcher{
		files:    files,
		debounce: opts.Debounce,
		run:      run,
		log:      opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.log == nil {
		w.log = zap.NewNop()
	}
	return w, nil
}

// Run performs an initial run, then re-runs on changes until ctx is done.
// Parent directories are watched so atomic-rename saves are seen. Errors
// from the run func are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dirs := make(map[string]bool)
	for f := range w.files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	w.trigger(ctx, "initial")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	changed := ""

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("change detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			changed = filepath.Base(event.Name)
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			w.trigger(ctx, changed)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	return w.files[filepath.Clean(event.Name)]
}

func (w *Watcher) trigger(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	if err := w.run(ctx, reason); err != nil {
		w.log.Error("verification run failed", zap.String("reason", reason), zap.Error(err))
	}
}
