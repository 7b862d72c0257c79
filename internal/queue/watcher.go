package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultQuiescence is how long a job file must go without writes before
// it is considered complete.
const DefaultQuiescence = 2 * time.Second

// Watcher reports job files added to a directory once they stop changing.
// Dotfiles and files without a .json suffix are ignored.
type Watcher struct {
	dir        string
	quiescence time.Duration
	log        *logrus.Entry

	fsw    *fsnotify.Watcher
	events chan string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher starts watching dir. Call Run to deliver events and Close
// when done.
func NewWatcher(dir string, quiescence time.Duration, log *logrus.Entry) (*Watcher, error) {
	if quiescence <= 0 {
		quiescence = DefaultQuiescence
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		dir:        dir,
		quiescence: quiescence,
		log:        log,
		fsw:        fsw,
		events:     make(chan string, 64),
		timers:     make(map[string]*time.Timer),
	}, nil
}

// Events delivers the paths of stable job files.
func (w *Watcher) Events() <-chan string { return w.events }

// Run pumps filesystem events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("queue watcher error")
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !IsJobFile(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.touch(ctx, ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.forget(ev.Name)
	}
}

// touch (re)arms the quiescence timer of path.
func (w *Watcher) touch(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.quiescence)
		return
	}
	w.timers[path] = time.AfterFunc(w.quiescence, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.events <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
