// Package scheduler provides named deferred callbacks.
//
// Timers are addressed by a deterministic key so they can be located and
// cancelled before they fire. Scheduling a key that already has a pending
// timer replaces it, so a key never fires twice.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs callbacks after a delay, addressed by key.
type Scheduler interface {
	// Schedule registers fn to run after delay under key, replacing any pending timer with that key.
	Schedule(key string, delay time.Duration, fn func(ctx context.Context))
	// Cancel stops the pending timer under key. It reports whether a timer was stopped.
	Cancel(key string) bool
	// Pending reports whether a timer is registered under key.
	Pending(key string) bool
}

// TaskFailKey names the auto-fail timer of a periodic task.
func TaskFailKey(taskID string) string {
	return "task:" + taskID + ":failTimeout"
}

// TokenExpireKey names the expiry timer of a refresh token identified by its digest.
func TokenExpireKey(digest string) string {
	return "token:" + digest + ":expireTimeout"
}

type entry struct {
	timer *time.Timer
	id    uint64
}

// Memory is a process-local Scheduler backed by time.AfterFunc.
// Timers do not survive a restart; owners re-arm them on startup.
type Memory struct {
	baseCtx context.Context
	logger  *slog.Logger
	timers  map[string]entry
	mu      sync.Mutex
	seq     uint64
}

// NewMemory creates an in-memory scheduler. Callbacks receive baseCtx.
func NewMemory(baseCtx context.Context, logger *slog.Logger) *Memory {
	return &Memory{
		baseCtx: baseCtx,
		logger:  logger,
		timers:  make(map[string]entry),
	}
}

// Schedule implements Scheduler. A non-positive delay fires immediately in its own goroutine.
func (m *Memory) Schedule(key string, delay time.Duration, fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.timers[key]; ok {
		prev.timer.Stop()
	}

	m.seq++
	id := m.seq
	if delay < 0 {
		delay = 0
	}

	t := time.AfterFunc(delay, func() {
		// Таймер мог быть заменен или отменен между срабатыванием и захватом мьютекса
		m.mu.Lock()
		cur, ok := m.timers[key]
		if !ok || cur.id != id {
			m.mu.Unlock()
			return
		}
		delete(m.timers, key)
		m.mu.Unlock()

		m.run(key, fn)
	})
	m.timers[key] = entry{timer: t, id: id}

	m.logger.Debug("Timer scheduled", slog.String("key", key), slog.Duration("delay", delay))
}

func (m *Memory) run(key string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Timer callback panicked",
				slog.String("key", key),
				slog.Any("panic", r),
			)
		}
	}()

	m.logger.Debug("Timer fired", slog.String("key", key))
	fn(m.baseCtx)
}

// Cancel implements Scheduler.
func (m *Memory) Cancel(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.timers[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(m.timers, key)

	m.logger.Debug("Timer cancelled", slog.String("key", key))
	return true
}

// Pending implements Scheduler.
func (m *Memory) Pending(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.timers[key]
	return ok
}

// Len returns the number of pending timers.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.timers)
}

// Stop cancels every pending timer. Used on shutdown.
func (m *Memory) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, e := range m.timers {
		e.timer.Stop()
		delete(m.timers, key)
	}
}
