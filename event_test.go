package evcompat

import (
	"errors"
	"syscall"
	"testing"
	"time"
)

// initTestBase installs a fresh modern-driver base and tears it down with
// the test.
func initTestBase(t *testing.T) (*Base, *modernDriver) {
	t.Helper()
	ResetForTesting()
	t.Cleanup(ResetForTesting)
	d := newModernDriver()
	return Initialize(d), d
}

type firing struct {
	fd   int
	what EventMask
}

func TestNewEvent_basic(t *testing.T) {
	b, d := initTestBase(t)

	var fired []firing
	ev, err := NewEvent(b, 7, EvRead, func(fd int, what EventMask) {
		fired = append(fired, firing{fd, what})
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Fd() != 7 || ev.Mask() != EvRead {
		t.Errorf(`got fd %d mask %v`, ev.Fd(), ev.Mask())
	}
	if len(d.loop.regs) != 1 {
		t.Fatalf(`got %d registrations`, len(d.loop.regs))
	}
	reg := d.loop.regs[0]
	if reg.fd != 7 || reg.mask != EvRead {
		t.Errorf(`registered fd %d mask %v`, reg.fd, reg.mask)
	}
	if reg.armed {
		t.Error(`new events start unarmed`)
	}

	if err := ev.Add(time.Second); err != nil {
		t.Fatal(err)
	}
	if !reg.armed || reg.timeout != time.Second {
		t.Errorf(`add not delegated: %v %v`, reg.armed, reg.timeout)
	}

	reg.fire(EvRead)
	if len(fired) != 1 || fired[0] != (firing{7, EvRead}) {
		t.Errorf(`callback: %+v`, fired)
	}

	if err := ev.Del(); err != nil {
		t.Fatal(err)
	}
	if reg.armed || reg.dels != 1 {
		t.Errorf(`del not delegated: %v %d`, reg.armed, reg.dels)
	}
}

func TestNewEvent_currentBaseDefault(t *testing.T) {
	_, d := initTestBase(t)
	if _, err := NewEvent(nil, 3, EvWrite, func(int, EventMask) {}); err != nil {
		t.Fatal(err)
	}
	if len(d.loop.regs) != 1 || d.loop.regs[0].fd != 3 {
		t.Error(`registration did not land on the current base`)
	}
}

func TestNewEvent_notInitialized(t *testing.T) {
	ResetForTesting()
	expectPanic(t, `evcompat: not initialized`, func() {
		_, _ = NewEvent(nil, 0, EvRead, func(int, EventMask) {})
	})
}

func TestNewEvent_nilCallback(t *testing.T) {
	b, _ := initTestBase(t)
	expectPanic(t, `evcompat: nil event callback`, func() {
		_, _ = NewEvent(b, 0, EvRead, nil)
	})
}

func TestNewEvent_registerError(t *testing.T) {
	b, d := initTestBase(t)
	sentinel := errors.New(`nope`)
	d.loop.registerErr = sentinel
	_, err := NewEvent(b, 0, EvRead, func(int, EventMask) {})
	if !errors.Is(err, sentinel) {
		t.Fatalf(`got %v`, err)
	}
	if got := err.Error(); got != `evcompat: event registration failed: nope` {
		t.Errorf(`got %q`, got)
	}
}

func TestNewTimerEvent(t *testing.T) {
	b, d := initTestBase(t)
	if _, err := NewTimerEvent(b, func(int, EventMask) {}); err != nil {
		t.Fatal(err)
	}
	reg := d.loop.regs[0]
	if reg.fd != -1 || reg.mask != 0 {
		t.Errorf(`got fd %d mask %v`, reg.fd, reg.mask)
	}
}

func TestNewSignalEvent(t *testing.T) {
	b, d := initTestBase(t)
	if _, err := NewSignalEvent(b, syscall.SIGHUP, func(int, EventMask) {}); err != nil {
		t.Fatal(err)
	}
	reg := d.loop.regs[0]
	if reg.fd != int(syscall.SIGHUP) || reg.mask != EvSignal|EvPersist {
		t.Errorf(`got fd %d mask %v`, reg.fd, reg.mask)
	}
}

func TestEvent_Free(t *testing.T) {
	b, d := initTestBase(t)
	ev, err := NewEvent(b, 5, EvRead|EvPersist, func(int, EventMask) {})
	if err != nil {
		t.Fatal(err)
	}
	ev.Free()
	if len(d.loop.regs) != 0 {
		t.Error(`free must deregister`)
	}
	expectPanic(t, `evcompat: event already freed`, ev.Free)
	expectPanic(t, `evcompat: event already freed`, func() { _ = ev.Add(0) })
	expectPanic(t, `evcompat: event already freed`, func() { _ = ev.Del() })
}
