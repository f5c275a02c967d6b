package evcompat

import (
	"errors"
	"fmt"
	"syscall"
	"time"
)

// Event is a single registration against a [Base]: a descriptor (or signal
// number, or neither), an interest mask, and a callback. The same API works
// over every driver generation.
//
// Events are owned exclusively by their creator and driven from the loop
// goroutine. [Event.Free] releases the registration; using an event after
// freeing it is a programming error.
type Event struct {
	base *Base
	reg  Registration
	fd   int
	mask EventMask
}

// NewEvent registers fd, mask, and cb against b, defaulting b to
// [CurrentBase] when nil. The event starts unarmed; see [Event.Add]. It
// panics when no base is live or cb is nil, and returns an error only when
// the driver refuses the registration.
func NewEvent(b *Base, fd int, mask EventMask, cb Callback) (*Event, error) {
	if b == nil {
		b = currentBase
	}
	if b == nil {
		panic(errors.New("evcompat: not initialized"))
	}
	if cb == nil {
		panic(errors.New("evcompat: nil event callback"))
	}
	e := &Event{base: b, fd: fd, mask: mask}
	reg, err := b.loop.Register(fd, mask, cb)
	if err != nil {
		return nil, fmt.Errorf("evcompat: event registration failed: %w", err)
	}
	e.reg = reg
	return e, nil
}

// NewTimerEvent registers a pure-timeout event: no descriptor, one firing
// per [Event.Add].
func NewTimerEvent(b *Base, cb Callback) (*Event, error) {
	return NewEvent(b, -1, 0, cb)
}

// NewSignalEvent registers a persistent event fired whenever sig is
// delivered to the process. The callback receives the signal number as its
// descriptor argument.
func NewSignalEvent(b *Base, sig syscall.Signal, cb Callback) (*Event, error) {
	return NewEvent(b, int(sig), EvSignal|EvPersist, cb)
}

// Add arms the event. A non-negative timeout also schedules a timeout
// firing; negative means wait on the mask alone. Re-adding an armed event
// reschedules its timeout.
func (x *Event) Add(timeout time.Duration) error {
	if x.reg == nil {
		panic(errors.New("evcompat: event already freed"))
	}
	return x.reg.Add(timeout)
}

// Del disarms the event without releasing it; it may be re-armed later.
func (x *Event) Del() error {
	if x.reg == nil {
		panic(errors.New("evcompat: event already freed"))
	}
	return x.reg.Del()
}

// Fd returns the descriptor (or signal number) the event was created with.
func (x *Event) Fd() int { return x.fd }

// Mask returns the interest mask the event was created with.
func (x *Event) Mask() EventMask { return x.mask }

// Free disarms the event and releases its registration. Freeing an event
// that was never armed is fine; freeing one twice panics.
func (x *Event) Free() {
	if x.reg == nil {
		panic(errors.New("evcompat: event already freed"))
	}
	_ = x.base.loop.Deregister(x.reg)
	x.reg = nil
}
