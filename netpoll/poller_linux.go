package netpoll

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

var platformBackends = []backend{
	{name: "epoll", open: openEpoll},
	{name: "poll", open: openPoll},
}

// epollPoller multiplexes via epoll(7), with an eventfd for wakeups.
type epollPoller struct {
	epfd   int
	wakefd int
	events [128]unix.EpollEvent
}

func openEpoll() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	x := &epollPoller{epfd: epfd, wakefd: wakefd}
	if err := x.add(wakefd, pollRead); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, err
	}
	return x, nil
}

func (x *epollPoller) name() string { return "epoll" }

func epollMask(events pollEvents) uint32 {
	var m uint32
	if events&pollRead != 0 {
		m |= unix.EPOLLIN
	}
	if events&pollWrite != 0 {
		m |= unix.EPOLLOUT
	}
	return m
}

func (x *epollPoller) add(fd int, events pollEvents) error {
	return unix.EpollCtl(x.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: epollMask(events),
		Fd:     int32(fd),
	})
}

func (x *epollPoller) mod(fd int, events pollEvents) error {
	return unix.EpollCtl(x.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: epollMask(events),
		Fd:     int32(fd),
	})
}

func (x *epollPoller) del(fd int) error {
	err := unix.EpollCtl(x.epfd, unix.EPOLL_CTL_DEL, fd, &unix.EpollEvent{Fd: int32(fd)})
	if err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return err
}

func (x *epollPoller) wait(evs []pollEvent, timeoutMs int) ([]pollEvent, error) {
	n, err := unix.EpollWait(x.epfd, x.events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return evs, nil
		}
		return evs, err
	}
	for i := 0; i < n; i++ {
		e := &x.events[i]
		fd := int(e.Fd)
		if fd == x.wakefd {
			x.drainWake()
			continue
		}
		var ready pollEvents
		if e.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			ready = pollRead | pollWrite
		} else {
			if e.Events&unix.EPOLLIN != 0 {
				ready |= pollRead
			}
			if e.Events&unix.EPOLLOUT != 0 {
				ready |= pollWrite
			}
		}
		if ready != 0 {
			evs = append(evs, pollEvent{fd: fd, events: ready})
		}
	}
	return evs, nil
}

func (x *epollPoller) wake() error {
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(x.wakefd, buf)
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

func (x *epollPoller) drainWake() {
	var buf [8]byte
	for {
		n, err := unix.Read(x.wakefd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (x *epollPoller) close() error {
	err := unix.Close(x.wakefd)
	if err2 := unix.Close(x.epfd); err == nil {
		err = err2
	}
	return err
}
