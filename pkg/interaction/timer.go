package interaction

import (
	"sync"
	"time"
)

// HoverTimer runs an action after a delay, e.g. showing a node tooltip a
// beat after the pointer settles. Scheduling replaces any pending action;
// Cancel must win the race when the pointer leaves before the delay
// elapses, so a stale tooltip never appears after focus has moved.
type HoverTimer struct {
	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// Schedule arranges for fn to run after d, replacing any pending action.
func (h *HoverTimer) Schedule(d time.Duration, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.seq++
	seq := h.seq
	h.timer = time.AfterFunc(d, func() {
		// A Schedule or Cancel that happened after AfterFunc fired but
		// before we got the lock invalidates this run.
		h.mu.Lock()
		stale := seq != h.seq
		h.mu.Unlock()
		if !stale {
			fn()
		}
	})
}

// Cancel drops any pending action. Safe to call with nothing scheduled.
func (h *HoverTimer) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	h.seq++
}
