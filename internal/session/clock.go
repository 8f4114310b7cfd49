package session

import (
	"sync"
	"time"
)

// Clock is the time source for a Session. Tests inject a fake.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

// RealClock uses the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// timerSlot holds at most one pending timer of a kind. The generation
// advances on every arm and stop, so a callback that was already running
// when the slot changed can tell it is stale.
type timerSlot struct {
	timer Timer
	gen   uint64
}

func (s *timerSlot) arm(clock Clock, d time.Duration, fire func(gen uint64)) {
	s.stop()
	gen := s.gen
	s.timer = clock.AfterFunc(d, func() { fire(gen) })
}

// stop is idempotent.
func (s *timerSlot) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *timerSlot) active() bool {
	return s.timer != nil
}

func (s *timerSlot) current(gen uint64) bool {
	return s.timer != nil && s.gen == gen
}

// fired clears the slot without bumping the generation.
func (s *timerSlot) fired() {
	s.timer = nil
}

// ManualClock only moves when Advance is called. Scripted replays use it
// to step through timeouts without waiting.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	f       func()
	stopped bool
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	pending := !t.stopped
	t.stopped = true
	return pending
}

// Advance moves time forward by d in steps, firing each due timer at its
// deadline in order. Callbacks run without the clock lock held, so they
// may arm new timers; those fire too if they fall within d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(end)
		if next == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		next.stopped = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

func (c *ManualClock) nextDueLocked(end time.Time) *manualTimer {
	var next *manualTimer
	live := c.timers[:0]
	for _, t := range c.timers {
		if t.stopped {
			continue
		}
		live = append(live, t)
		if t.at.After(end) {
			continue
		}
		if next == nil || t.at.Before(next.at) {
			next = t
		}
	}
	c.timers = live
	return next
}
