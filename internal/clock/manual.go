package clock

import (
	"context"
	"sync"
	"time"
)

// Manual is a Clock that blocks sleepers until Advance moves time past
// their deadline. Tests use it to observe state while a sequence is
// suspended between steps.
type Manual struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	done     chan struct{}
}

// NewManual creates a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	m := &Manual{now: start}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep blocks until Advance reaches now+d or ctx is done.
func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	m.mu.Lock()
	w := &waiter{deadline: m.now.Add(d), done: make(chan struct{})}
	m.waiters = append(m.waiters, w)
	m.cond.Broadcast()
	m.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		m.remove(w)
		m.mu.Unlock()
		return ctx.Err()
	}
}

// Advance moves time forward by d and wakes every sleeper whose deadline
// has been reached.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	kept := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.deadline.After(m.now) {
			close(w.done)
			continue
		}
		kept = append(kept, w)
	}
	m.waiters = kept
	m.cond.Broadcast()
}

// BlockUntil waits until at least n goroutines are sleeping on the clock.
func (m *Manual) BlockUntil(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.waiters) < n {
		m.cond.Wait()
	}
}

// Sleepers returns the number of goroutines currently blocked in Sleep.
func (m *Manual) Sleepers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

func (m *Manual) remove(target *waiter) {
	for i, w := range m.waiters {
		if w == target {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			m.cond.Broadcast()
			return
		}
	}
}
