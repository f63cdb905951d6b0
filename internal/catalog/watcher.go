package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadCallback is invoked with the newly parsed catalog after a
// successful hot-reload.
type ReloadCallback func(*Catalog) error

// ErrWatcherClosed is returned by Close when called more than once.
var ErrWatcherClosed = errors.New("catalog: watcher already closed")

// Watcher monitors the fault-catalog file for edits and reloads it,
// debouncing rapid successive writes and watching the parent directory so
// that atomic write patterns (temp file + rename) are detected correctly.
//
// A catalog edit that fails to parse is logged and rejected; the
// previously loaded, valid catalog remains in effect.
type Watcher struct {
	ctx           context.Context
	cancel        context.CancelFunc
	fsWatcher     *fsnotify.Watcher
	path          string
	callbacks     []ReloadCallback
	debounceDelay time.Duration
	mu            sync.RWMutex
	closed        bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay overrides the default 100ms debounce window.
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounceDelay = d }
}

// NewWatcher builds a Watcher for the catalog file at path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:          absPath,
		fsWatcher:     fsWatcher,
		debounceDelay: 100 * time.Millisecond,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		cancel()
		return nil, err
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// OnReload registers a callback fired in order after each successful reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Watch blocks, dispatching reloads, until ctx is canceled.
func (w *Watcher) Watch(ctx context.Context) error {
	var (
		timer      *time.Timer
		timerMu    sync.Mutex
		targetFile = filepath.Base(w.path)
	)

	for {
		select {
		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != targetFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.debounce(&timerMu, &timer)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("catalog watcher error")
		}
	}
}

func (w *Watcher) debounce(timerMu *sync.Mutex, timer **time.Timer) {
	timerMu.Lock()
	defer timerMu.Unlock()

	if *timer != nil {
		(*timer).Stop()
	}
	*timer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case <-w.ctx.Done():
			return
		default:
		}
		w.triggerReload()
	})
}

func (w *Watcher) triggerReload() {
	c, err := Load(w.path)
	if err != nil {
		log.Error().Err(err).Str("path", w.path).Msg("catalog reload rejected, keeping previous catalog")
		return
	}

	log.Info().Str("path", w.path).Msg("fault catalog reloaded")

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(c); err != nil {
			log.Error().Err(err).Msg("catalog reload callback error")
		}
	}
}

// Close stops watching and releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	w.closed = true
	w.cancel()
	return w.fsWatcher.Close()
}
