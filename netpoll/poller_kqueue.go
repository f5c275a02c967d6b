//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package netpoll

import (
	"time"

	"golang.org/x/sys/unix"
)

var platformBackends = []backend{
	{name: "kqueue", open: openKqueue},
	{name: "poll", open: openPoll},
}

// kqueuePoller multiplexes via kqueue(2). kqueue has no modify operation,
// so the current per-descriptor interest is tracked and mod is expressed as
// per-filter EV_ADD and EV_DELETE changes. Wakeups use a self-pipe.
type kqueuePoller struct {
	kq     int
	wp     *wakePipe
	state  map[int]pollEvents
	events [128]unix.Kevent_t
}

func openKqueue() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	wp, err := newWakePipe()
	if err != nil {
		_ = unix.Close(kq)
		return nil, err
	}
	x := &kqueuePoller{kq: kq, wp: wp, state: make(map[int]pollEvents)}
	if err := x.change(wp.r, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE); err != nil {
		_ = wp.close()
		_ = unix.Close(kq)
		return nil, err
	}
	return x, nil
}

func (x *kqueuePoller) name() string { return "kqueue" }

// change submits a single kevent. SetKevent papers over the Kevent_t field
// width differences between the BSDs.
func (x *kqueuePoller) change(fd, filter, flags int) error {
	var k unix.Kevent_t
	unix.SetKevent(&k, fd, filter, flags)
	_, err := unix.Kevent(x.kq, []unix.Kevent_t{k}, nil, nil)
	return err
}

// apply reconciles the kernel filters for fd against want, one filter at a
// time so a failure on one direction does not mask the other.
func (x *kqueuePoller) apply(fd int, want pollEvents) error {
	have := x.state[fd]
	type dir struct {
		bit    pollEvents
		filter int
	}
	for _, d := range [...]dir{{pollRead, unix.EVFILT_READ}, {pollWrite, unix.EVFILT_WRITE}} {
		switch {
		case want&d.bit != 0 && have&d.bit == 0:
			if err := x.change(fd, d.filter, unix.EV_ADD|unix.EV_ENABLE); err != nil {
				x.setState(fd, have)
				return err
			}
			have |= d.bit
		case want&d.bit == 0 && have&d.bit != 0:
			if err := x.change(fd, d.filter, unix.EV_DELETE); err != nil && err != unix.ENOENT && err != unix.EBADF {
				x.setState(fd, have)
				return err
			}
			have &^= d.bit
		}
	}
	x.setState(fd, have)
	return nil
}

func (x *kqueuePoller) setState(fd int, have pollEvents) {
	if have == 0 {
		delete(x.state, fd)
	} else {
		x.state[fd] = have
	}
}

func (x *kqueuePoller) add(fd int, events pollEvents) error { return x.apply(fd, events) }

func (x *kqueuePoller) mod(fd int, events pollEvents) error { return x.apply(fd, events) }

func (x *kqueuePoller) del(fd int) error { return x.apply(fd, 0) }

func (x *kqueuePoller) wait(evs []pollEvent, timeoutMs int) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(time.Millisecond))
		ts = &t
	}
	n, err := unix.Kevent(x.kq, nil, x.events[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return evs, nil
		}
		return evs, err
	}
	for i := 0; i < n; i++ {
		e := &x.events[i]
		fd := int(e.Ident)
		if fd == x.wp.r {
			x.wp.drain()
			continue
		}
		if e.Flags&unix.EV_ERROR != 0 {
			continue
		}
		var ready pollEvents
		switch e.Filter {
		case unix.EVFILT_READ:
			ready = pollRead
		case unix.EVFILT_WRITE:
			ready = pollWrite
		default:
			continue
		}
		// The filters fire separately; report one event per descriptor.
		merged := false
		for j := len(evs) - 1; j >= 0; j-- {
			if evs[j].fd == fd {
				evs[j].events |= ready
				merged = true
				break
			}
		}
		if !merged {
			evs = append(evs, pollEvent{fd: fd, events: ready})
		}
	}
	return evs, nil
}

func (x *kqueuePoller) wake() error { return x.wp.write() }

func (x *kqueuePoller) close() error {
	err := x.wp.close()
	if err2 := unix.Close(x.kq); err == nil {
		err = err2
	}
	return err
}
