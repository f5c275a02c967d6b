// Package netpoll is the native event driver for evcompat. It multiplexes
// file descriptor readiness, POSIX signals, and timers over the best polling
// facility the platform offers (epoll on Linux, kqueue on the BSDs and
// macOS, poll(2) everywhere else).
//
// [New] returns an [evcompat.Driver]; hand it to [evcompat.Initialize] and
// drive the loop with [evcompat.Base.Loop]. Loops are single-goroutine:
// Dispatch and registration changes must happen on the goroutine that owns
// the loop. Exit is the one exception, and only because it does no
// bookkeeping beyond stamping a deadline before waking the poller.
//
// Backend selection honours the EVENT_NOEPOLL, EVENT_NOKQUEUE, and
// EVENT_NOPOLL environment variables. Setting one (to any value, including
// the empty string) removes that backend from consideration.
package netpoll
