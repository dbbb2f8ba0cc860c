package game

import "time"

// CountdownInterval is the fixed period of the countdown schedule
const CountdownInterval = time.Second

// schedule is one named periodic driver owned by the session clock
type schedule struct {
	name     string
	interval time.Duration
	cancel   CancelFunc
}

func (s *schedule) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SessionClock owns the spawn and countdown schedules. They are always started
// and stopped together. Every start opens a new epoch; callbacks from an older
// epoch, or arriving after Stop, must be discarded by the owner via Live.
//
// SessionClock is not safe for concurrent use; the Engine serializes access.
type SessionClock struct {
	scheduler Scheduler
	spawn     schedule
	countdown schedule
	epoch     uint64
	running   bool
}

// NewSessionClock creates a stopped clock on top of scheduler
func NewSessionClock(scheduler Scheduler) *SessionClock {
	return &SessionClock{
		scheduler: scheduler,
		spawn:     schedule{name: "spawn"},
		countdown: schedule{name: "countdown", interval: CountdownInterval},
	}
}

// Start arms both schedules. Returns false without touching anything when the
// clock is already running.
func (c *SessionClock) Start(spawnEvery time.Duration, onSpawn, onCountdown func(epoch uint64)) bool {
	if c.running {
		return false
	}

	c.epoch++
	epoch := c.epoch

	c.spawn.interval = spawnEvery
	c.spawn.cancel = c.scheduler.Every(spawnEvery, func() { onSpawn(epoch) })
	c.countdown.cancel = c.scheduler.Every(c.countdown.interval, func() { onCountdown(epoch) })
	c.running = true
	return true
}

// Stop cancels both schedules. Stopping a stopped clock is a no-op.
func (c *SessionClock) Stop() bool {
	if !c.running {
		return false
	}
	c.spawn.stop()
	c.countdown.stop()
	c.running = false
	return true
}

// Live reports whether a callback stamped with epoch may still mutate state
func (c *SessionClock) Live(epoch uint64) bool {
	return c.running && epoch == c.epoch
}

// Running reports whether the schedules are armed
func (c *SessionClock) Running() bool {
	return c.running
}

// Epoch returns the current start generation
func (c *SessionClock) Epoch() uint64 {
	return c.epoch
}

// SpawnInterval returns the interval of the current (or last) spawn schedule
func (c *SessionClock) SpawnInterval() time.Duration {
	return c.spawn.interval
}
