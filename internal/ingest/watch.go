package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

type WatchOptions struct {
	// Debounce is the quiet period after the last change before a run.
	Debounce time.Duration
	// MinInterval is the minimum spacing between runs.
	MinInterval time.Duration
}

// Watcher re-runs ingest when transcripts under a home change.
type Watcher struct {
	home    string
	opts    WatchOptions
	limiter *rate.Limiter
	run     func(ctx context.Context) error
}

// NewWatcher returns a watcher calling run once at start and again after
// each debounced burst of transcript changes.
func NewWatcher(home string, opts WatchOptions, run func(ctx context.Context) error) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Watcher{
		home:    home,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		run:     run,
	}
}

// Watch blocks until ctx is done or the watcher fails.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: create watcher: %w", err)
	}
	defer fw.Close()

	sessions := filepath.Join(w.home, SessionsDir)
	if err := fw.Add(w.home); err != nil {
		return fmt.Errorf("ingest: watch %s: %w", w.home, err)
	}
	w.addTree(fw, sessions)

	if err := w.trigger(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && w.inSessions(ev.Name) {
					w.addTree(fw, ev.Name)
					timer.Reset(w.opts.Debounce)
					continue
				}
			}
			if (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) && isTranscriptPath(ev.Name) {
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[watch] error=%v", err)

		case <-timer.C:
			if err := w.trigger(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *Watcher) trigger(ctx context.Context) error {
	if err := w.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	if err := w.run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[watch] ingest failed error=%v", err)
	}
	return nil
}

func (w *Watcher) inSessions(path string) bool {
	rel, err := filepath.Rel(filepath.Join(w.home, SessionsDir), path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// addTree watches dir and every directory below it. Directories that
// vanish or cannot be watched are skipped.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			log.Printf("[watch] skip dir=%s error=%v", path, err)
		}
		return nil
	})
}
