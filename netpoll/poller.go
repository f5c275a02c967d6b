package netpoll

import (
	"fmt"
	"os"
	"strings"
)

// pollEvents is a bitmask of descriptor readiness conditions.
type pollEvents uint8

const (
	pollRead pollEvents = 1 << iota
	pollWrite
)

// pollEvent reports readiness for a single descriptor.
type pollEvent struct {
	fd     int
	events pollEvents
}

// poller abstracts the platform multiplexer. Implementations own a wakeup
// descriptor which never appears in wait results. All methods except wake
// must be called from the loop goroutine.
type poller interface {
	// name identifies the backend, e.g. "epoll".
	name() string
	// add starts monitoring fd for the given conditions.
	add(fd int, events pollEvents) error
	// mod changes the monitored conditions for fd.
	mod(fd int, events pollEvents) error
	// del stops monitoring fd.
	del(fd int) error
	// wait appends ready descriptors to evs and returns the result.
	// timeoutMs of -1 blocks until an event or a wakeup; 0 returns
	// immediately. A wait interrupted by a signal returns empty.
	wait(evs []pollEvent, timeoutMs int) ([]pollEvent, error)
	// wake interrupts a concurrent wait. Safe to call from any goroutine.
	wake() error
	// close releases the backend. The poller is unusable afterwards.
	close() error
}

// backend pairs a poller constructor with the name used for selection and
// for the EVENT_NO* environment overrides.
type backend struct {
	name string
	open func() (poller, error)
}

// newPoller opens the first usable backend from the platform preference
// order, skipping any named in disabled or by an EVENT_NO<NAME> environment
// variable. The variable's presence disables, whatever its value.
func newPoller(disabled map[string]bool) (poller, error) {
	var firstErr error
	for _, b := range platformBackends {
		if disabled[b.name] {
			continue
		}
		if _, ok := os.LookupEnv("EVENT_NO" + strings.ToUpper(b.name)); ok {
			continue
		}
		p, err := b.open()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("netpoll: %s unavailable: %w", b.name, err)
			}
			continue
		}
		return p, nil
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNoBackend
}
