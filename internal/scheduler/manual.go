package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by an explicit clock. Nothing fires until
// Advance or Fire is called. It is used by tests of timer-driven behaviour.
type Manual struct {
	now    time.Time
	timers map[string]manualTimer
	mu     sync.Mutex
}

type manualTimer struct {
	at time.Time
	fn func(ctx context.Context)
}

// NewManual creates a manual scheduler whose clock starts at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now, timers: make(map[string]manualTimer)}
}

// Now returns the scheduler clock. It can be passed as a service clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Schedule implements Scheduler.
func (m *Manual) Schedule(key string, delay time.Duration, fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[key] = manualTimer{at: m.now.Add(delay), fn: fn}
}

// Cancel implements Scheduler.
func (m *Manual) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[key]
	delete(m.timers, key)
	return ok
}

// Pending implements Scheduler.
func (m *Manual) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[key]
	return ok
}

// Deadline returns when the timer under key is due.
func (m *Manual) Deadline(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[key]
	return t.at, ok
}

// Keys returns pending keys in lexical order.
func (m *Manual) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.timers))
	for k := range m.timers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fire runs the timer under key immediately, regardless of its deadline.
func (m *Manual) Fire(ctx context.Context, key string) bool {
	m.mu.Lock()
	t, ok := m.timers[key]
	delete(m.timers, key)
	m.mu.Unlock()

	if !ok {
		return false
	}
	t.fn(ctx)
	return true
}

// Advance moves the clock forward by d and runs every timer that became due,
// earliest first. Callbacks run synchronously without holding the lock.
func (m *Manual) Advance(ctx context.Context, d time.Duration) int {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	type due struct {
		at  time.Time
		fn  func(ctx context.Context)
		key string
	}
	var fired []due
	for key, t := range m.timers {
		if !t.at.After(now) {
			fired = append(fired, due{key: key, at: t.at, fn: t.fn})
			delete(m.timers, key)
		}
	}
	m.mu.Unlock()

	sort.Slice(fired, func(i, j int) bool { return fired[i].at.Before(fired[j].at) })
	for _, f := range fired {
		f.fn(ctx)
	}
	return len(fired)
}
