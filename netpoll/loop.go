package netpoll

import (
	"container/heap"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	evcompat "github.com/joeycumines/go-evcompat"
)

// maxPollInterval bounds a single poller wait so the loop periodically
// revisits its exit deadline even when no timer is due.
const maxPollInterval = 10 * time.Second

// timeNow allows tests to control the clock.
var timeNow = time.Now

type nopLocker struct{}

func (nopLocker) Lock()   {}
func (nopLocker) Unlock() {}

// registration is one (descriptor, mask, callback) binding on a loop. The
// same structure backs I/O, signal, and pure-timer registrations; which
// maps reference it depends on the mask.
type registration struct {
	l        *loop
	fd       int
	mask     evcompat.EventMask
	cb       evcompat.Callback
	armed    bool
	removed  bool
	dropped  bool          // staged callback dequeued by Del
	interval time.Duration // -1 when no timeout is set
	deadline time.Time
	heapIdx  int // -1 when not queued
}

// timerHeap orders armed registrations with timeouts by deadline.
type timerHeap []*registration

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *timerHeap) Push(v any) {
	r := v.(*registration)
	r.heapIdx = len(*h)
	*h = append(*h, r)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old) - 1
	r := old[n]
	old[n] = nil
	r.heapIdx = -1
	*h = old[:n]
	return r
}

// fired is a callback invocation collected under the lock and run after it
// is released.
type fired struct {
	r    *registration
	what evcompat.EventMask
}

// loop multiplexes registrations over a poller. Aside from Exit, which may
// be called from any goroutine, a loop belongs to a single goroutine.
type loop struct {
	d      *Driver
	poller poller

	// mu guards the registration state below. It is a no-op locker when
	// the loop was built with DisableLocking.
	mu      sync.Locker
	fdRegs  map[int][]*registration
	fdState map[int]pollEvents
	sigRegs map[int][]*registration
	timers  timerHeap
	armed   int

	// Signal deliveries arrive on sigCh via a forwarder goroutine, which
	// stashes them under sigMu and wakes the poller. sigMu is always a
	// real mutex; the forwarder runs regardless of DisableLocking.
	sigCh      chan os.Signal
	sigMu      sync.Mutex
	sigPending []os.Signal
	stopCh     chan struct{}
	wg         sync.WaitGroup

	exitMu  sync.Mutex
	exitSet bool
	exitAt  time.Time

	dispatching bool
	closed      atomic.Bool

	evBuf  []pollEvent
	queued []fired
}

func newLoop(d *Driver, cfg evcompat.LoopConfig) (*loop, error) {
	p, err := newPoller(d.opts.disabled)
	if err != nil {
		return nil, err
	}
	x := &loop{
		d:       d,
		poller:  p,
		fdRegs:  make(map[int][]*registration),
		fdState: make(map[int]pollEvents),
		sigRegs: make(map[int][]*registration),
		stopCh:  make(chan struct{}),
		evBuf:   make([]pollEvent, 0, 128),
	}
	if cfg.DisableLocking {
		x.mu = nopLocker{}
	} else {
		x.mu = new(sync.Mutex)
	}
	d.logf(evcompat.SeverityMsg, "using: %s", p.name())
	return x, nil
}

// Method reports the polling backend in use.
func (x *loop) Method() string { return x.poller.name() }

func (x *loop) Register(fd int, mask evcompat.EventMask, cb evcompat.Callback) (evcompat.Registration, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed.Load() {
		return nil, ErrLoopClosed
	}
	if cb == nil {
		return nil, ErrNilCallback
	}
	if mask&evcompat.EvTimeout != 0 {
		return nil, ErrBadMask
	}
	if mask&evcompat.EvSignal != 0 {
		if mask&(evcompat.EvRead|evcompat.EvWrite) != 0 {
			return nil, ErrBadMask
		}
		if fd <= 0 {
			return nil, ErrBadDescriptor
		}
	} else if mask&(evcompat.EvRead|evcompat.EvWrite) != 0 && fd < 0 {
		return nil, ErrBadDescriptor
	}
	r := &registration{l: x, fd: fd, mask: mask, cb: cb, interval: -1, heapIdx: -1}
	if mask&(evcompat.EvRead|evcompat.EvWrite) != 0 {
		x.fdRegs[fd] = append(x.fdRegs[fd], r)
	}
	if mask&evcompat.EvSignal != 0 {
		x.sigRegs[fd] = append(x.sigRegs[fd], r)
	}
	return r, nil
}

func (x *loop) Deregister(r evcompat.Registration) error {
	reg, ok := r.(*registration)
	if !ok || reg.l != x {
		return ErrNotRegistered
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if reg.removed {
		return ErrNotRegistered
	}
	x.disarmLocked(reg)
	reg.removed = true
	if reg.mask&(evcompat.EvRead|evcompat.EvWrite) != 0 {
		if s := removeReg(x.fdRegs[reg.fd], reg); len(s) == 0 {
			delete(x.fdRegs, reg.fd)
		} else {
			x.fdRegs[reg.fd] = s
		}
	}
	if reg.mask&evcompat.EvSignal != 0 {
		if s := removeReg(x.sigRegs[reg.fd], reg); len(s) == 0 {
			delete(x.sigRegs, reg.fd)
		} else {
			x.sigRegs[reg.fd] = s
		}
	}
	return nil
}

func removeReg(s []*registration, r *registration) []*registration {
	for i, v := range s {
		if v == r {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func (x *registration) Add(timeout time.Duration) error {
	l := x.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if x.removed {
		return ErrNotRegistered
	}
	wasArmed, wasInterval, wasDeadline := x.armed, x.interval, x.deadline
	x.armed = true
	if !wasArmed {
		l.armed++
	}
	if timeout >= 0 {
		x.interval = timeout
		x.deadline = timeNow().Add(timeout)
		if x.heapIdx >= 0 {
			heap.Fix(&l.timers, x.heapIdx)
		} else {
			heap.Push(&l.timers, x)
		}
	} else {
		x.interval = -1
		if x.heapIdx >= 0 {
			heap.Remove(&l.timers, x.heapIdx)
		}
	}
	if x.mask&(evcompat.EvRead|evcompat.EvWrite) != 0 {
		if err := l.syncFd(x.fd); err != nil {
			x.armed, x.interval, x.deadline = wasArmed, wasInterval, wasDeadline
			if !wasArmed {
				l.armed--
			}
			wantQueued := wasArmed && wasInterval >= 0
			switch {
			case wantQueued && x.heapIdx < 0:
				heap.Push(&l.timers, x)
			case wantQueued:
				heap.Fix(&l.timers, x.heapIdx)
			case x.heapIdx >= 0:
				heap.Remove(&l.timers, x.heapIdx)
			}
			return err
		}
	}
	if x.mask&evcompat.EvSignal != 0 {
		l.ensureSignals()
		signal.Notify(l.sigCh, syscall.Signal(x.fd))
	}
	return nil
}

func (x *registration) Del() error {
	l := x.l
	l.mu.Lock()
	defer l.mu.Unlock()
	if x.removed {
		return ErrNotRegistered
	}
	l.disarmLocked(x)
	x.dropped = true
	return nil
}

// disarmLocked takes a registration out of every armed structure. Poller
// failures on this path are reported through the driver's log handler
// rather than returned; disarming must not fail.
func (x *loop) disarmLocked(r *registration) {
	if !r.armed {
		return
	}
	r.armed = false
	x.armed--
	if r.heapIdx >= 0 {
		heap.Remove(&x.timers, r.heapIdx)
	}
	if r.mask&(evcompat.EvRead|evcompat.EvWrite) != 0 {
		if err := x.syncFd(r.fd); err != nil {
			x.d.logf(evcompat.SeverityWarn, "failed to update %s interest for fd %d: %v", x.poller.name(), r.fd, err)
		}
	}
}

// syncFd reconciles the poller's interest in fd with the union of armed
// registrations. After Close the poller is gone; only the bookkeeping is
// updated.
func (x *loop) syncFd(fd int) error {
	var want pollEvents
	for _, r := range x.fdRegs[fd] {
		if !r.armed {
			continue
		}
		if r.mask&evcompat.EvRead != 0 {
			want |= pollRead
		}
		if r.mask&evcompat.EvWrite != 0 {
			want |= pollWrite
		}
	}
	have := x.fdState[fd]
	if want == have {
		return nil
	}
	if !x.closed.Load() {
		var err error
		switch {
		case have == 0:
			err = x.poller.add(fd, want)
		case want == 0:
			err = x.poller.del(fd)
		default:
			err = x.poller.mod(fd, want)
		}
		if err != nil {
			return err
		}
	}
	if want == 0 {
		delete(x.fdState, fd)
	} else {
		x.fdState[fd] = want
	}
	return nil
}

func (x *loop) ensureSignals() {
	if x.sigCh != nil {
		return
	}
	x.sigCh = make(chan os.Signal, 64)
	x.wg.Add(1)
	go x.forwardSignals()
}

func (x *loop) forwardSignals() {
	defer x.wg.Done()
	for {
		select {
		case sig := <-x.sigCh:
			x.sigMu.Lock()
			x.sigPending = append(x.sigPending, sig)
			x.sigMu.Unlock()
			_ = x.poller.wake()
		case <-x.stopCh:
			return
		}
	}
}

func (x *loop) Dispatch() error {
	if x.closed.Load() {
		return ErrLoopClosed
	}
	if x.dispatching {
		return ErrDispatchRunning
	}
	x.dispatching = true
	defer func() { x.dispatching = false }()
	for {
		now := timeNow()
		if x.exitDue(now) {
			return nil
		}
		x.mu.Lock()
		armed := x.armed
		x.mu.Unlock()
		if armed == 0 && !x.exitPending() {
			return nil
		}
		evs, err := x.poller.wait(x.evBuf[:0], x.pollTimeout(now))
		if err != nil {
			return fmt.Errorf("netpoll: wait: %w", err)
		}
		x.evBuf = evs
		x.runTick(evs)
		if x.closed.Load() {
			return nil
		}
	}
}

func (x *loop) exitDue(now time.Time) bool {
	x.exitMu.Lock()
	defer x.exitMu.Unlock()
	if x.exitSet && !now.Before(x.exitAt) {
		x.exitSet = false
		return true
	}
	return false
}

func (x *loop) exitPending() bool {
	x.exitMu.Lock()
	defer x.exitMu.Unlock()
	return x.exitSet
}

// pollTimeout computes the wait bound in milliseconds: the nearest of the
// next timer deadline and the exit deadline, capped at maxPollInterval.
// Sub-millisecond waits round up so a due-soon timer is not spun on.
func (x *loop) pollTimeout(now time.Time) int {
	delay := maxPollInterval
	x.mu.Lock()
	if len(x.timers) > 0 {
		if d := x.timers[0].deadline.Sub(now); d < delay {
			delay = d
		}
	}
	x.mu.Unlock()
	x.exitMu.Lock()
	if x.exitSet {
		if d := x.exitAt.Sub(now); d < delay {
			delay = d
		}
	}
	x.exitMu.Unlock()
	if delay <= 0 {
		return 0
	}
	if delay < time.Millisecond {
		return 1
	}
	return int(delay / time.Millisecond)
}

// runTick collects everything that fired under the lock, then runs the
// callbacks with the lock released so they can re-enter the loop API.
func (x *loop) runTick(evs []pollEvent) {
	now := timeNow()
	x.mu.Lock()
	x.queued = x.queued[:0]
	x.collectSignals()
	x.collectIO(evs, now)
	x.collectTimers(now)
	queued := x.queued
	x.mu.Unlock()
	for _, f := range queued {
		if f.r.removed || f.r.dropped {
			continue
		}
		f.r.cb(f.r.fd, f.what)
	}
}

// queue stages a callback for the run phase. Staging supersedes any Del
// from an earlier tick.
func (x *loop) queue(r *registration, what evcompat.EventMask) {
	r.dropped = false
	x.queued = append(x.queued, fired{r: r, what: what})
}

func (x *loop) collectSignals() {
	if x.sigCh == nil {
		return
	}
	x.sigMu.Lock()
	pending := x.sigPending
	x.sigPending = nil
	x.sigMu.Unlock()
	for _, sig := range pending {
		signo, ok := sig.(syscall.Signal)
		if !ok {
			continue
		}
		for _, r := range x.sigRegs[int(signo)] {
			if !r.armed {
				continue
			}
			if r.mask&evcompat.EvPersist == 0 {
				x.disarmLocked(r)
			}
			x.queue(r, evcompat.EvSignal)
		}
	}
}

func (x *loop) collectIO(evs []pollEvent, now time.Time) {
	for _, ev := range evs {
		for _, r := range x.fdRegs[ev.fd] {
			if !r.armed {
				continue
			}
			var what evcompat.EventMask
			if ev.events&pollRead != 0 {
				what |= evcompat.EvRead
			}
			if ev.events&pollWrite != 0 {
				what |= evcompat.EvWrite
			}
			what &= r.mask
			if what == 0 {
				continue
			}
			if r.mask&evcompat.EvPersist == 0 {
				x.disarmLocked(r)
			} else if r.interval >= 0 && r.heapIdx >= 0 {
				// A persistent timeout restarts every time the
				// registration fires, not only on timeout firings.
				r.deadline = now.Add(r.interval)
				heap.Fix(&x.timers, r.heapIdx)
			}
			x.queue(r, what)
		}
	}
}

func (x *loop) collectTimers(now time.Time) {
	// The budget bounds the collection; a persistent timer rescheduled
	// into the past (interval zero) must not pin the tick.
	for budget := len(x.timers); budget > 0 && len(x.timers) > 0 && !x.timers[0].deadline.After(now); budget-- {
		r := x.timers[0]
		if r.mask&evcompat.EvPersist != 0 {
			r.deadline = r.deadline.Add(r.interval)
			if !r.deadline.After(now) {
				r.deadline = now.Add(r.interval)
			}
			heap.Fix(&x.timers, 0)
		} else {
			x.disarmLocked(r)
		}
		x.queue(r, evcompat.EvTimeout)
	}
}

func (x *loop) Exit(after time.Duration) error {
	if x.closed.Load() {
		return ErrLoopClosed
	}
	if after < 0 {
		after = 0
	}
	x.exitMu.Lock()
	x.exitAt = timeNow().Add(after)
	x.exitSet = true
	x.exitMu.Unlock()
	return x.poller.wake()
}

func (x *loop) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return nil
	}
	if x.sigCh != nil {
		signal.Stop(x.sigCh)
	}
	close(x.stopCh)
	x.wg.Wait()
	return x.poller.close()
}
