package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is reloaded.
const DefaultDebounce = 1500 * time.Millisecond

// Watcher reloads a file through a typed loader whenever it changes on
// disk and passes the result to every subscriber. The parent directory
// is watched, so editors that save by renaming a temp file keep working.
// Changes that leave the content byte-identical are not reloaded.
type Watcher[T any] struct {
	path     string
	load     func(path string) (T, error)
	debounce time.Duration
	onError  func(error)
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[int]func(T)
	nextID int
	digest [sha256.Size]byte

	fsw  *fsnotify.Watcher
	stop chan struct{}
	done chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption[T any] func(*Watcher[T])

// WithDebounce overrides DefaultDebounce.
func WithDebounce[T any](d time.Duration) WatcherOption[T] {
	return func(w *Watcher[T]) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler is called with every failed reload.
func WithErrorHandler[T any](fn func(error)) WatcherOption[T] {
	return func(w *Watcher[T]) {
		w.onError = fn
	}
}

// NewWatcher creates a watcher for path. Nothing is watched until Start.
func NewWatcher[T any](path string, load func(string) (T, error), logger *slog.Logger, opts ...WatcherOption[T]) *Watcher[T] {
	w := &Watcher[T]{
		path:     filepath.Clean(path),
		load:     load,
		debounce: DefaultDebounce,
		logger:   logger,
		subs:     make(map[int]func(T)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OnReload subscribes fn to reloads and returns its unsubscribe function.
func (w *Watcher[T]) OnReload(fn func(T)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Path returns the watched file.
func (w *Watcher[T]) Path() string {
	return w.path
}

// Start records the current content and begins watching.
func (w *Watcher[T]) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	if data, err := os.ReadFile(w.path); err == nil {
		w.digest = sha256.Sum256(data)
	}

	w.fsw = fsw
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.run()

	w.logger.Info("Watching file", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop ends the watch and waits for the watch goroutine to exit.
func (w *Watcher[T]) Stop() error {
	if w.fsw == nil {
		return nil
	}
	close(w.stop)
	err := w.fsw.Close()
	<-w.done
	w.fsw = nil
	return err
}

func (w *Watcher[T]) run() {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}
			w.logger.Debug("File event", "path", w.path, "op", ev.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "path", w.path, "error", err)
		}
	}
}

// reload loads the file if its content changed and notifies subscribers.
func (w *Watcher[T]) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.fail(err)
		return
	}

	digest := sha256.Sum256(data)
	w.mu.Lock()
	unchanged := bytes.Equal(digest[:], w.digest[:])
	w.mu.Unlock()
	if unchanged {
		w.logger.Debug("File content unchanged, skipping reload", "path", w.path)
		return
	}

	value, err := w.load(w.path)
	if err != nil {
		w.fail(err)
		return
	}

	w.mu.Lock()
	w.digest = digest
	subs := make([]func(T), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	w.logger.Info("File reloaded", "path", w.path, "subscribers", len(subs))
	for _, fn := range subs {
		fn(value)
	}
}

func (w *Watcher[T]) fail(err error) {
	w.logger.Warn("Failed to reload file", "path", w.path, "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}
