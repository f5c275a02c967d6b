package netpoll

import "errors"

var (
	// ErrLoopClosed is returned by loop operations after Close.
	ErrLoopClosed = errors.New("netpoll: loop closed")
	// ErrDispatchRunning is returned by Dispatch when the loop is already
	// dispatching, including re-entry from a callback.
	ErrDispatchRunning = errors.New("netpoll: dispatch already running")
	// ErrNotRegistered is returned when a registration does not belong to
	// the loop, or was already deregistered.
	ErrNotRegistered = errors.New("netpoll: registration not found")
	// ErrNilCallback is returned by Register when no callback is supplied.
	ErrNilCallback = errors.New("netpoll: nil callback")
	// ErrBadMask rejects registration masks the loop cannot service, such
	// as combining EvSignal with EvRead or EvWrite.
	ErrBadMask = errors.New("netpoll: unsupported event mask")
	// ErrBadDescriptor rejects negative descriptors for I/O registrations
	// and non-positive signal numbers for signal registrations.
	ErrBadDescriptor = errors.New("netpoll: bad descriptor")
	// ErrNoBackend is returned by NewLoop when every polling backend was
	// disabled or failed to initialize.
	ErrNoBackend = errors.New("netpoll: no usable polling backend")
)
