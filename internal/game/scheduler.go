package game

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled callback. Calling it more than once is a no-op.
type CancelFunc func()

// Scheduler drives periodic and one-shot callbacks.
// Production code uses RealScheduler; tests use ManualScheduler for virtual time.
type Scheduler interface {
	// Every fires fn every interval until cancelled
	Every(interval time.Duration, fn func()) CancelFunc
	// After fires fn once after delay unless cancelled first
	After(delay time.Duration, fn func()) CancelFunc
	// Now returns the scheduler's notion of current time
	Now() time.Time
}

// RealScheduler runs callbacks on wall-clock timers.
type RealScheduler struct{}

// NewRealScheduler returns a wall-clock scheduler
func NewRealScheduler() RealScheduler {
	return RealScheduler{}
}

// Every starts a ticker goroutine. A fire racing with cancel may still run
// once; callers guard state with their own epoch check.
func (RealScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})
	var stopOnce sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-stopChan:
				return
			}
		}
	}()

	return func() {
		stopOnce.Do(func() {
			close(stopChan)
		})
	}
}

// After wraps time.AfterFunc
func (RealScheduler) After(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, fn)
	return func() {
		t.Stop()
	}
}

// Now returns the wall clock time
func (RealScheduler) Now() time.Time {
	return time.Now()
}

// manualTimer is one pending callback on the virtual timeline
type manualTimer struct {
	id       uint64
	due      time.Duration
	interval time.Duration // zero for one-shot timers
	fn       func()
}

// ManualScheduler is a virtual-time scheduler. Nothing fires until Advance is
// called; due callbacks then run synchronously in (due time, registration) order.
type ManualScheduler struct {
	mu      sync.Mutex
	start   time.Time
	elapsed time.Duration
	nextID  uint64
	timers  map[uint64]*manualTimer
}

// NewManualScheduler creates a virtual scheduler whose clock starts at start
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{
		start:  start,
		timers: make(map[uint64]*manualTimer),
	}
}

// Every registers a periodic virtual timer
func (m *ManualScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return m.add(interval, interval, fn)
}

// After registers a one-shot virtual timer
func (m *ManualScheduler) After(delay time.Duration, fn func()) CancelFunc {
	if delay < 0 {
		delay = 0
	}
	return m.add(delay, 0, fn)
}

func (m *ManualScheduler) add(delay, interval time.Duration, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.timers[id] = &manualTimer{
		id:       id,
		due:      m.elapsed + delay,
		interval: interval,
		fn:       fn,
	}

	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}

// Now returns the virtual time
func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start.Add(m.elapsed)
}

// Elapsed returns how much virtual time has passed since creation
func (m *ManualScheduler) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

// Pending returns the number of registered timers
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves virtual time forward by d, firing every callback that comes
// due on the way. Callbacks run without the scheduler lock held, so they may
// register or cancel timers.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.elapsed + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		var next *manualTimer
		for _, t := range m.timers {
			if t.due > target {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.id < next.id) {
				next = t
			}
		}
		if next == nil {
			m.elapsed = target
			m.mu.Unlock()
			return
		}

		m.elapsed = next.due
		if next.interval > 0 {
			next.due += next.interval
		} else {
			delete(m.timers, next.id)
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}
