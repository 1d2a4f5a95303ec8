// Package clock abstracts wall time so playback delays can run against a
// real or a virtual timeline.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source used by the feed store and the playback
// sequencer. Sleep must return ctx.Err() if the context ends first.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is a Clock backed by the system clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is done.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Tracker is implemented by clocks that need to know which goroutines
// take part in their timeline. Begin marks one more running participant and
// End retires it. Callers that spawn work pair them around the goroutine.
type Tracker interface {
	Begin()
	End()
}

// Virtual is a Clock whose time only moves when every participant is
// asleep. Each Sleep is scheduled at its own deadline (now + d); once the
// number of parked sleepers reaches the number of running participants,
// time jumps to the earliest deadline and the sleepers due then wake. A
// sequence of delays therefore runs in zero wall time, and concurrent
// delays overlap the way they would on a real clock.
//
// Goroutines registered with Begin count as participants. A Sleep from an
// unregistered goroutine while no participant is running advances at once.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	active  int
	waiters []*waiter
	slept   []time.Duration
}

var _ Tracker = (*Virtual)(nil)

// NewVirtual creates a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now returns the current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Begin registers a running participant.
func (v *Virtual) Begin() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active++
}

// End retires a participant and lets time move if everyone left is asleep.
func (v *Virtual) End() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active > 0 {
		v.active--
	}
	v.advanceLocked()
}

// Sleep parks the caller until virtual time reaches now+d.
func (v *Virtual) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	v.slept = append(v.slept, d)
	if d <= 0 {
		v.mu.Unlock()
		return nil
	}
	w := &waiter{deadline: v.now.Add(d), done: make(chan struct{})}
	v.waiters = append(v.waiters, w)
	v.advanceLocked()
	v.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		v.mu.Lock()
		defer v.mu.Unlock()
		if !v.removeLocked(w) {
			// Woken while the context ended; the time already passed.
			return nil
		}
		v.advanceLocked()
		return ctx.Err()
	}
}

// Slept returns every duration passed to Sleep, in call order.
func (v *Virtual) Slept() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]time.Duration, len(v.slept))
	copy(out, v.slept)
	return out
}

// advanceLocked jumps to the earliest deadline once every participant is
// parked, and wakes the sleepers due at that time.
func (v *Virtual) advanceLocked() {
	if len(v.waiters) == 0 || len(v.waiters) < v.active {
		return
	}
	next := v.waiters[0].deadline
	for _, w := range v.waiters[1:] {
		if w.deadline.Before(next) {
			next = w.deadline
		}
	}
	if next.After(v.now) {
		v.now = next
	}
	kept := v.waiters[:0]
	for _, w := range v.waiters {
		if !w.deadline.After(v.now) {
			close(w.done)
			continue
		}
		kept = append(kept, w)
	}
	v.waiters = kept
}

func (v *Virtual) removeLocked(target *waiter) bool {
	for i, w := range v.waiters {
		if w == target {
			v.waiters = append(v.waiters[:i], v.waiters[i+1:]...)
			return true
		}
	}
	return false
}
