package evcompat

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// Base is the process-wide event-loop handle. It is constructed exactly once
// by [Initialize] and threaded, explicitly or via the package-level default,
// through every event and timer constructor.
type Base struct {
	driver   Driver
	loop     Loop
	caps     caps
	logger   *logiface.Logger[logiface.Event]
	issues   IssueTable
	header   HeaderInfo
	bridging bool
}

// currentBase is the live process-wide Base, nil before Initialize. Guarded
// by the package's single-thread contract rather than a lock.
var currentBase *Base

// CurrentBase returns the live process-wide [Base], or nil before
// [Initialize] has run.
func CurrentBase() *Base {
	return currentBase
}

// Initialize probes the driver's capabilities, constructs the event loop,
// and installs the result as the process-wide [Base]. It must run before
// any event or timer is created, and panics when called with a nil driver,
// when a Base is already live, or when the driver cannot construct its
// loop: nothing can run without one.
//
// On Darwin, when the host is older than the 10.4 kernel line or the driver
// release predates 1.1b, the environment variable EVENT_NOKQUEUE is set
// first so that backend selection avoids the broken kqueue.
func Initialize(drv Driver, opts ...Option) *Base {
	if currentBase != nil {
		panic(errors.New("evcompat: already initialized"))
	}
	if drv == nil {
		panic(errors.New("evcompat: nil driver"))
	}

	o := defaultBaseOptions()
	for _, opt := range opts {
		opt.applyBase(&o)
	}

	c := resolveDriverCaps(drv)
	maybeDisableKqueue(&c)

	loop, err := drv.NewLoop(LoopConfig{DisableLocking: true})
	if err != nil {
		panic(fmt.Errorf("evcompat: unable to initialize event loop: %w", err))
	}
	if loop == nil {
		panic(errors.New("evcompat: driver returned a nil loop"))
	}
	c.resolveLoopCaps(loop)

	if !o.headerSet {
		o.header = c.header
	}

	b := &Base{
		driver: drv,
		loop:   loop,
		caps:   c,
		logger: o.logger,
		issues: o.issues,
		header: o.header,
	}
	currentBase = b

	if c.versionString != nil && c.method != nil {
		// Notice severity so problem reports can be tied to a driver
		// version and backend.
		b.logger.Notice().
			Str("version", c.versionString()).
			Str("method", c.method()).
			Log("initialized event driver")
	} else {
		b.logger.Notice().Log("initialized old event driver (version 1.0b or earlier)")
		b.logger.Warning().Log("this driver release is very old and likely to be buggy; please use a more recent one")
	}

	return b
}

// Loop returns the raw driver loop, for dispatching and for driver-specific
// calls this package does not wrap.
func (x *Base) Loop() Loop {
	return x.loop
}

// Method returns the name of the polling backend in use, or "<unknown>" for
// drivers that cannot say.
func (x *Base) Method() string {
	if x.caps.method == nil {
		return methodUnknown
	}
	return x.caps.method()
}

// VersionString returns the running driver's version as reported, or
// "pre-1.0c" for drivers that cannot say.
func (x *Base) VersionString() string {
	if x.caps.versionString == nil {
		return versionStringTooOld
	}
	return x.caps.versionString()
}

// RuntimeVersion returns the running driver's version, both packed and as
// reported. Drivers without introspection read as [VersionUnknownOld] with
// the "pre-1.0c" placeholder.
func (x *Base) RuntimeVersion() (VersionCode, string) {
	return x.caps.runtimeVersion()
}

// LoopExit arranges for the loop's Dispatch to return, after the given
// delay when positive. It panics when invoked on anything but the live
// process-wide Base.
func (x *Base) LoopExit(after time.Duration) error {
	if x != currentBase {
		panic(errors.New("evcompat: loop exit on a stale base"))
	}
	return x.loop.Exit(after)
}
