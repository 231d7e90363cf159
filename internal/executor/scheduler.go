package executor

import (
	"sync"
	"time"
)

// Scheduler runs single-shot delayed callbacks, modeling spec §5's
// "scheduler for delayed retries" executor pool. It never retries on its
// own behalf: callers reschedule by calling AfterFunc again.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

// NewScheduler returns a ready-to-use Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[*time.Timer]struct{})}
}

// AfterFunc schedules fn to run after d, on its own goroutine. It returns a
// cancel function; canceling after fn has already fired is a no-op. Once the
// scheduler is stopped, AfterFunc is a no-op and returns a no-op cancel.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return func() {}
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		fn()
	})
	s.timers[t] = struct{}{}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		t.Stop()
	}
}

// Stop cancels every pending timer. Callbacks already running are not
// interrupted, matching the engine's drop() semantics elsewhere: cancellation
// stops future work, not work in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
}
