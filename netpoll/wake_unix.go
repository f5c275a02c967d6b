//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package netpoll

import "golang.org/x/sys/unix"

// wakePipe is a non-blocking self-pipe used to interrupt a poller wait on
// platforms without eventfd. The read end sits in the descriptor set; a
// one-byte write to the other end makes it readable.
type wakePipe struct {
	r, w int
}

func newWakePipe() (*wakePipe, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(p[0])
			_ = unix.Close(p[1])
			return nil, err
		}
	}
	return &wakePipe{r: p[0], w: p[1]}, nil
}

// write makes the read end readable. A full pipe already has a wakeup
// pending, so EAGAIN counts as success.
func (x *wakePipe) write() error {
	_, err := unix.Write(x.w, []byte{1})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// drain consumes every pending wakeup byte.
func (x *wakePipe) drain() {
	var buf [128]byte
	for {
		n, err := unix.Read(x.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (x *wakePipe) close() error {
	err := unix.Close(x.r)
	if err2 := unix.Close(x.w); err == nil {
		err = err2
	}
	return err
}
