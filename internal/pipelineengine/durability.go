package pipelineengine

import (
	"sync"
	"time"
)

// debouncer flushes fn at most once every interval while active, and
// is safe to stop multiple times. Used for the 2s periodic
// pendingContent flush (spec §4.E.4) — "Debounce timers are cleared
// on any terminal or error path; failure to clear is a correctness
// bug".
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	fn       func()
	stopped  bool
}

func newDebouncer(interval time.Duration, fn func()) *debouncer {
	d := &debouncer{interval: interval, fn: fn}
	d.reset()
	return d
}

func (d *debouncer) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	d.fn()
	d.reset()
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// stallDetector raises fn if it isn't poked within window. Each poke
// restarts the window. Used for the 60s no-activity stall condition
// (spec §4.E.6); the engine never aborts on its own — it only
// surfaces the condition.
type stallDetector struct {
	mu      sync.Mutex
	timer   *time.Timer
	window  time.Duration
	fn      func()
	stopped bool
}

func newStallDetector(window time.Duration, fn func()) *stallDetector {
	s := &stallDetector{window: window, fn: fn}
	s.poke()
	return s
}

func (s *stallDetector) poke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.window, s.fn)
}

func (s *stallDetector) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
