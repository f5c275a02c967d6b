package evcompat

import (
	"errors"
	"fmt"
	"time"
)

// PeriodicTimer runs a callback every interval on the loop. When the driver
// honors persistent timeouts the firing cadence is the driver's, anchored to
// the schedule rather than to callback completion; otherwise the timer
// re-arms itself before each callback, which keeps the drift bounded by
// dispatch latency instead of accumulating callback runtime.
type PeriodicTimer struct {
	ev       *Event
	cb       func(*PeriodicTimer)
	interval time.Duration
	rearm    bool
}

// NewPeriodicTimer creates and schedules a timer firing cb every interval
// on b's loop. The first firing is one interval away. It panics on a nil
// base, nil callback, or non-positive interval, and returns an error when
// the driver refuses the underlying registration.
func NewPeriodicTimer(b *Base, interval time.Duration, cb func(*PeriodicTimer)) (*PeriodicTimer, error) {
	if b == nil {
		panic(errors.New("evcompat: nil base"))
	}
	if interval <= 0 {
		panic(fmt.Errorf("evcompat: invalid timer interval: %v", interval))
	}
	if cb == nil {
		panic(errors.New("evcompat: nil timer callback"))
	}

	t := &PeriodicTimer{cb: cb, interval: interval, rearm: !b.caps.persistentTimers}
	var mask EventMask
	if !t.rearm {
		mask = EvPersist
	}
	ev, err := NewEvent(b, -1, mask, t.fire)
	if err != nil {
		return nil, err
	}
	t.ev = ev
	if err := ev.Add(interval); err != nil {
		ev.Free()
		return nil, fmt.Errorf("evcompat: unable to schedule timer: %w", err)
	}
	return t, nil
}

// fire reschedules as needed, then runs the callback. Rescheduling comes
// first so a slow callback cannot push the next deadline out.
func (x *PeriodicTimer) fire(int, EventMask) {
	if x.rearm {
		_ = x.ev.Add(x.interval)
	}
	x.cb(x)
}

// Interval returns the firing interval.
func (x *PeriodicTimer) Interval() time.Duration {
	return x.interval
}

// Free stops the timer and releases its event. Free on a nil timer is a
// no-op; freeing twice panics. Freeing from inside the callback is fine:
// any pending re-arm dies with the registration.
func (x *PeriodicTimer) Free() {
	if x == nil {
		return
	}
	x.ev.Free()
}
