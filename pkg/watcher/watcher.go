// Package watcher provides a debounced filesystem watcher over a chat
// directory. Consumers receive coalesced change notifications on a channel
// rather than raw fsnotify events.
package watcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches one chat directory and signals on Changed() after the
// stream of events has been quiet for the debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration

	fw      *fsnotify.Watcher
	changed chan struct{}

	mu      sync.Mutex
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the quiet window before a change is reported.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for the given chat directory.
func NewWatcher(dir string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:      dir,
		debounce: 200 * time.Millisecond,
		fw:       fw,
		changed:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. Idempotent.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := w.fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	go w.loop()
	return nil
}

// Stop shuts the watcher down and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.cancel()
	w.fw.Close()

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

// Changed returns the coalesced change notification channel.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// loop coalesces raw events: the timer restarts on every relevant event and
// fires only once the directory has been quiet for the debounce window.
func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			select {
			case w.changed <- struct{}{}:
			default:
				// A notification is already pending; coalesce.
			}

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}
