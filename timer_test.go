package evcompat

import (
	"errors"
	"testing"
	"time"
)

func TestNewPeriodicTimer_native(t *testing.T) {
	b, d := initTestBase(t)
	pt, err := NewPeriodicTimer(b, time.Second, func(*PeriodicTimer) {})
	if err != nil {
		t.Fatal(err)
	}
	reg := d.loop.regs[0]
	if reg.mask != EvPersist {
		t.Errorf(`native timers ride the driver's persistence: %v`, reg.mask)
	}
	if reg.fd != -1 {
		t.Errorf(`got fd %d`, reg.fd)
	}
	if reg.adds != 1 || reg.timeout != time.Second {
		t.Errorf(`timer not scheduled: %d %v`, reg.adds, reg.timeout)
	}
	reg.fire(EvTimeout)
	if reg.adds != 1 {
		t.Error(`native timers must not re-arm by hand`)
	}
	if pt.Interval() != time.Second {
		t.Errorf(`got %v`, pt.Interval())
	}
}

func TestNewPeriodicTimer_emulated(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)
	d := &classicDriver{version: `1.4.13-stable`}
	b := Initialize(d)

	var addsSeen []int
	var got []*PeriodicTimer
	pt, err := NewPeriodicTimer(b, 50*time.Millisecond, func(x *PeriodicTimer) {
		addsSeen = append(addsSeen, d.loop.regs[0].adds)
		got = append(got, x)
	})
	if err != nil {
		t.Fatal(err)
	}
	reg := d.loop.regs[0]
	if reg.mask != 0 {
		t.Errorf(`emulated timers must not request persistence: %v`, reg.mask)
	}
	if reg.adds != 1 || reg.timeout != 50*time.Millisecond {
		t.Errorf(`timer not scheduled: %d %v`, reg.adds, reg.timeout)
	}

	reg.fire(EvTimeout)
	reg.fire(EvTimeout)

	// One add at creation, then one more before each callback ran.
	if len(addsSeen) != 2 || addsSeen[0] != 2 || addsSeen[1] != 3 {
		t.Errorf(`re-arm must precede the callback: %v`, addsSeen)
	}
	if len(got) != 2 || got[0] != pt || got[1] != pt {
		t.Error(`callback must receive the timer`)
	}
}

func TestNewPeriodicTimer_misuse(t *testing.T) {
	b, _ := initTestBase(t)
	expectPanic(t, `evcompat: nil base`, func() {
		_, _ = NewPeriodicTimer(nil, time.Second, func(*PeriodicTimer) {})
	})
	expectPanic(t, `evcompat: invalid timer interval: 0s`, func() {
		_, _ = NewPeriodicTimer(b, 0, func(*PeriodicTimer) {})
	})
	expectPanic(t, `evcompat: invalid timer interval: -1ns`, func() {
		_, _ = NewPeriodicTimer(b, -1, func(*PeriodicTimer) {})
	})
	expectPanic(t, `evcompat: nil timer callback`, func() {
		_, _ = NewPeriodicTimer(b, time.Second, nil)
	})
}

func TestNewPeriodicTimer_registerError(t *testing.T) {
	b, d := initTestBase(t)
	sentinel := errors.New(`nope`)
	d.loop.registerErr = sentinel
	if _, err := NewPeriodicTimer(b, time.Second, func(*PeriodicTimer) {}); !errors.Is(err, sentinel) {
		t.Fatalf(`got %v`, err)
	}
}

func TestNewPeriodicTimer_scheduleError(t *testing.T) {
	b, d := initTestBase(t)
	sentinel := errors.New(`no timers today`)
	d.loop.regAddErr = sentinel
	_, err := NewPeriodicTimer(b, time.Second, func(*PeriodicTimer) {})
	if !errors.Is(err, sentinel) {
		t.Fatalf(`got %v`, err)
	}
	if got := err.Error(); got != `evcompat: unable to schedule timer: no timers today` {
		t.Errorf(`got %q`, got)
	}
	if len(d.loop.regs) != 0 {
		t.Error(`failed timers must not leak their registration`)
	}
}

func TestPeriodicTimer_Free(t *testing.T) {
	b, d := initTestBase(t)
	pt, err := NewPeriodicTimer(b, time.Second, func(*PeriodicTimer) {})
	if err != nil {
		t.Fatal(err)
	}
	pt.Free()
	if len(d.loop.regs) != 0 {
		t.Error(`free must deregister`)
	}
	expectPanic(t, `evcompat: event already freed`, pt.Free)

	var nilTimer *PeriodicTimer
	nilTimer.Free()
}

func TestPeriodicTimer_freeFromCallback(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)
	d := &classicDriver{version: `1.4.13-stable`}
	b := Initialize(d)

	pt, err := NewPeriodicTimer(b, time.Second, func(x *PeriodicTimer) { x.Free() })
	if err != nil {
		t.Fatal(err)
	}
	d.loop.regs[0].fire(EvTimeout)
	if len(d.loop.regs) != 0 {
		t.Error(`free from the callback must release the registration`)
	}
	expectPanic(t, `evcompat: event already freed`, pt.Free)
}
