//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package netpoll

import "golang.org/x/sys/unix"

// pollPoller is the portable fallback over poll(2). The descriptor set is
// rebuilt lazily before each wait; registration changes only mark it dirty.
// Bad descriptors surface as POLLNVAL at wait time rather than failing the
// add, which is inherent to the interface.
type pollPoller struct {
	wp    *wakePipe
	state map[int]pollEvents
	fds   []unix.PollFd
	dirty bool
}

func openPoll() (poller, error) {
	wp, err := newWakePipe()
	if err != nil {
		return nil, err
	}
	return &pollPoller{wp: wp, state: make(map[int]pollEvents), dirty: true}, nil
}

func (x *pollPoller) name() string { return "poll" }

func (x *pollPoller) add(fd int, events pollEvents) error {
	x.state[fd] = events
	x.dirty = true
	return nil
}

func (x *pollPoller) mod(fd int, events pollEvents) error {
	x.state[fd] = events
	x.dirty = true
	return nil
}

func (x *pollPoller) del(fd int) error {
	delete(x.state, fd)
	x.dirty = true
	return nil
}

func (x *pollPoller) rebuild() {
	x.fds = x.fds[:0]
	x.fds = append(x.fds, unix.PollFd{Fd: int32(x.wp.r), Events: unix.POLLIN})
	for fd, events := range x.state {
		var m int16
		if events&pollRead != 0 {
			m |= unix.POLLIN
		}
		if events&pollWrite != 0 {
			m |= unix.POLLOUT
		}
		x.fds = append(x.fds, unix.PollFd{Fd: int32(fd), Events: m})
	}
	x.dirty = false
}

func (x *pollPoller) wait(evs []pollEvent, timeoutMs int) ([]pollEvent, error) {
	if x.dirty {
		x.rebuild()
	}
	n, err := unix.Poll(x.fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return evs, nil
		}
		return evs, err
	}
	for i := range x.fds {
		if n == 0 {
			break
		}
		e := &x.fds[i]
		if e.Revents == 0 {
			continue
		}
		n--
		fd := int(e.Fd)
		if fd == x.wp.r {
			x.wp.drain()
			continue
		}
		var ready pollEvents
		if e.Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			ready = pollRead | pollWrite
		} else {
			if e.Revents&unix.POLLIN != 0 {
				ready |= pollRead
			}
			if e.Revents&unix.POLLOUT != 0 {
				ready |= pollWrite
			}
		}
		if ready != 0 {
			evs = append(evs, pollEvent{fd: fd, events: ready})
		}
	}
	return evs, nil
}

func (x *pollPoller) wake() error { return x.wp.write() }

func (x *pollPoller) close() error { return x.wp.close() }
