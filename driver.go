package evcompat

import "time"

type (
	// Driver supplies event loops. It is the only interface a driver must
	// implement; everything else about a driver generation is discovered
	// through the optional interfaces below, probed once by [Initialize].
	Driver interface {
		// NewLoop constructs the event loop. The configuration is advisory:
		// drivers ignore what they cannot honor.
		NewLoop(cfg LoopConfig) (Loop, error)
	}

	// Loop is an event loop owned by a driver. Dispatch and Exit are the
	// application's to call; this package never runs the loop itself.
	Loop interface {
		// Register binds fd, a mask, and a callback to the loop, returning
		// an unarmed registration. For signal registrations (mask includes
		// [EvSignal]) fd carries the signal number.
		Register(fd int, mask EventMask, cb Callback) (Registration, error)

		// Deregister disarms and releases a registration.
		Deregister(r Registration) error

		// Dispatch runs the loop on the calling goroutine until an exit is
		// requested or no armed registrations remain.
		Dispatch() error

		// Exit arranges for Dispatch to return, after the given delay when
		// positive.
		Exit(after time.Duration) error

		// Close releases the loop's resources.
		Close() error
	}

	// Registration is one (descriptor, mask, callback) binding.
	Registration interface {
		// Add arms the registration. A non-negative timeout also schedules
		// a timeout firing; negative means no timeout. Re-adding an armed
		// registration reschedules its timeout.
		Add(timeout time.Duration) error

		// Del disarms the registration without releasing it.
		Del() error
	}

	// Callback receives the descriptor (or signal number) that fired and a
	// mask describing what happened.
	Callback func(fd int, what EventMask)

	// LoopConfig carries construction-time requests for [Driver.NewLoop].
	LoopConfig struct {
		// DisableLocking requests that the loop skip internal locking. Set
		// by [Initialize]: the package's single-thread contract makes
		// locking, and the wake machinery it implies, dead weight.
		DisableLocking bool
	}

	// EventMask is a bitmask of event kinds, used both to declare interest
	// at registration and to report what fired in a [Callback].
	EventMask uint32
)

const (
	// EvTimeout reports that a registration's timeout elapsed. It is never
	// part of a registration mask; timeouts come from [Registration.Add].
	EvTimeout EventMask = 1 << iota
	// EvRead declares and reports descriptor readability.
	EvRead
	// EvWrite declares and reports descriptor writability.
	EvWrite
	// EvSignal marks a signal registration; fd carries the signal number.
	EvSignal
	// EvPersist keeps the registration armed after it fires.
	EvPersist
)

// String renders the set bits as "read|write|...".
func (x EventMask) String() string {
	if x == 0 {
		return "none"
	}
	var b []byte
	for _, bit := range [...]struct {
		mask EventMask
		name string
	}{
		{EvTimeout, "timeout"},
		{EvRead, "read"},
		{EvWrite, "write"},
		{EvSignal, "signal"},
		{EvPersist, "persist"},
	} {
		if x&bit.mask != 0 {
			if len(b) > 0 {
				b = append(b, '|')
			}
			b = append(b, bit.name...)
		}
	}
	return string(b)
}

type (
	// VersionNumberer is implemented by drivers that can report their
	// release as a packed number directly. Such drivers report the string
	// form too; the numeric form is authoritative.
	VersionNumberer interface {
		VersionNumber() VersionCode
	}

	// VersionStringer is implemented by drivers that can report their
	// release as a string.
	VersionStringer interface {
		Version() string
	}

	// MethodNamer reports the polling backend in use. It may be implemented
	// by a [Loop] (preferred, per-loop) or by a [Driver] (process-global);
	// the loop's answer wins when both exist.
	MethodNamer interface {
		Method() string
	}

	// LogHandlerSetter is implemented by drivers whose internal diagnostics
	// can be intercepted. The severity values are the Severity* constants;
	// anything else is reported as-is by the bridge.
	LogHandlerSetter interface {
		SetLogHandler(func(severity int, msg string))
	}

	// PersistentTimerSupport is implemented by drivers that honor
	// [EvPersist] on pure-timeout registrations, firing them repeatedly
	// without re-arming. Absent support, [PeriodicTimer] re-arms by hand.
	PersistentTimerSupport interface {
		PersistentTimers() bool
	}

	// HeaderVersioner describes what a driver binding knows about the
	// interface definitions it was compiled against, for
	// [Base.CheckHeaderCompatibility]. Most pure-Go drivers report their
	// own version; bindings over foreign libraries report what their
	// headers said at build time, which can differ from the runtime.
	HeaderVersioner interface {
		HeaderInfo() HeaderInfo
	}

	// HeaderInfo is the compile-time interface knowledge of a binding.
	HeaderInfo struct {
		// Version is the exact compiled-against version string, or empty
		// when the headers predate version macros.
		Version string
		// Era coarsely places versionless headers; consulted only when
		// Version is empty.
		Era HeaderEra
	}

	// HeaderEra buckets versionless header generations.
	HeaderEra int
)

const (
	// EraUnknown means nothing is known about the compiled-against
	// interface; the header check stays silent.
	EraUnknown HeaderEra = iota
	// Era13 means the interface definitions are from 1.3e or earlier.
	Era13
	// Era140Beta means the interface definitions are from the 1.4.0
	// prerelease line, the only generation with modern layout but no
	// version macro.
	Era140Beta
)

// Severity values drivers pass to the handler set via [LogHandlerSetter].
const (
	SeverityDebug = iota
	SeverityMsg
	SeverityWarn
	SeverityErr
)

// caps is a driver's optional capability surface, resolved once at
// [Initialize]. A nil function means the driver generation cannot answer.
type caps struct {
	versionNumber    func() VersionCode
	versionString    func() string
	method           func() string
	setLogHandler    func(func(severity int, msg string))
	header           HeaderInfo
	persistentTimers bool
}

func resolveDriverCaps(d Driver) (c caps) {
	if v, ok := d.(VersionNumberer); ok {
		c.versionNumber = v.VersionNumber
	}
	if v, ok := d.(VersionStringer); ok {
		c.versionString = v.Version
	}
	if m, ok := d.(MethodNamer); ok {
		c.method = m.Method
	}
	if h, ok := d.(LogHandlerSetter); ok {
		c.setLogHandler = h.SetLogHandler
	}
	if p, ok := d.(PersistentTimerSupport); ok {
		c.persistentTimers = p.PersistentTimers()
	}
	if h, ok := d.(HeaderVersioner); ok {
		c.header = h.HeaderInfo()
	}
	return
}

// resolveLoopCaps layers loop-level answers over driver-level ones.
func (x *caps) resolveLoopCaps(l Loop) {
	if m, ok := l.(MethodNamer); ok {
		x.method = m.Method
	}
}

// runtimeVersion resolves the running driver's version, both packed and as
// reported. Drivers without any introspection read as [VersionUnknownOld]
// with a fixed placeholder string.
func (x *caps) runtimeVersion() (VersionCode, string) {
	switch {
	case x.versionNumber != nil:
		v := x.versionNumber()
		if x.versionString != nil {
			return v, x.versionString()
		}
		return v, v.String()
	case x.versionString != nil:
		s := x.versionString()
		return DecodeVersion(s), s
	default:
		return VersionUnknownOld, versionStringTooOld
	}
}

const (
	// versionStringTooOld stands in for drivers predating introspection.
	versionStringTooOld = "pre-1.0c"
	// methodUnknown stands in for drivers that cannot name their backend.
	methodUnknown = "<unknown>"
)
