package netpoll

import (
	"fmt"
	"time"

	evcompat "github.com/joeycumines/go-evcompat"
)

const (
	// Version is the release this driver reports.
	Version = "2.1.12-stable"
	// classicVersion is the release reported by GenerationClassic.
	classicVersion = "1.4.13-stable"
)

// Generation selects how much of the driver's capability surface New
// exposes. The narrower generations exist to exercise the degraded paths
// evcompat keeps for old drivers; the loops underneath are identical.
type Generation int

const (
	// GenerationModern exposes the full surface.
	GenerationModern Generation = iota
	// GenerationClassic reports a 1.4-era string version and accepts a
	// log handler, but has no packed version, no persistent timers, and
	// no per-loop anything beyond the backend name.
	GenerationClassic
	// GenerationAncient exposes loop construction and nothing else.
	GenerationAncient
)

func (x Generation) String() string {
	switch x {
	case GenerationModern:
		return "modern"
	case GenerationClassic:
		return "classic"
	case GenerationAncient:
		return "ancient"
	default:
		return fmt.Sprintf("generation(%d)", int(x))
	}
}

type driverOptions struct {
	generation Generation
	disabled   map[string]bool
}

// Option configures New.
type Option interface {
	apply(*driverOptions) error
}

type optionImpl struct {
	applyFunc func(*driverOptions) error
}

func (x *optionImpl) apply(opts *driverOptions) error { return x.applyFunc(opts) }

// WithGeneration selects the driver generation. The default is
// GenerationModern.
func WithGeneration(g Generation) Option {
	return &optionImpl{applyFunc: func(opts *driverOptions) error {
		switch g {
		case GenerationModern, GenerationClassic, GenerationAncient:
			opts.generation = g
			return nil
		default:
			return fmt.Errorf("netpoll: unknown generation %d", int(g))
		}
	}}
}

// WithoutBackend removes a polling backend from consideration, equivalent
// to setting the backend's EVENT_NO* environment variable. Unknown names
// are ignored.
func WithoutBackend(name string) Option {
	return &optionImpl{applyFunc: func(opts *driverOptions) error {
		if opts.disabled == nil {
			opts.disabled = make(map[string]bool)
		}
		opts.disabled[name] = true
		return nil
	}}
}

// New builds a driver for [evcompat.Initialize]. The concrete type depends
// on the configured generation.
func New(opts ...Option) (evcompat.Driver, error) {
	var o driverOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(&o); err != nil {
			return nil, err
		}
	}
	d := &Driver{opts: o}
	switch o.generation {
	case GenerationClassic:
		return &classicDriver{d: d}, nil
	case GenerationAncient:
		return &ancientDriver{d: d}, nil
	default:
		return d, nil
	}
}

// Driver is the full-surface driver. Its loops answer Method; the driver
// itself stays out of backend prediction since selection happens per loop.
type Driver struct {
	opts    driverOptions
	handler func(severity int, msg string)
}

func (x *Driver) NewLoop(cfg evcompat.LoopConfig) (evcompat.Loop, error) {
	l, err := newLoop(x, cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Version reports the driver release.
func (x *Driver) Version() string { return Version }

// VersionNumber reports the packed driver release.
func (x *Driver) VersionNumber() evcompat.VersionCode { return evcompat.MakeVersion(2, 1, 12) }

// SetLogHandler routes the driver's internal diagnostics to fn. Loops read
// the handler at emission time, so installing it after loop construction
// still takes effect.
func (x *Driver) SetLogHandler(fn func(severity int, msg string)) { x.handler = fn }

// PersistentTimers reports that EvPersist timeouts rearm natively.
func (x *Driver) PersistentTimers() bool { return true }

// HeaderInfo reports the interface this driver was built against. A pure
// Go driver is its own interface, so it matches the runtime version.
func (x *Driver) HeaderInfo() evcompat.HeaderInfo {
	return evcompat.HeaderInfo{Version: Version}
}

func (x *Driver) logf(severity int, format string, args ...any) {
	if h := x.handler; h != nil {
		h(severity, fmt.Sprintf(format, args...))
	}
}

// classicDriver narrows Driver to the 1.4-era surface. It wraps rather
// than embeds so the hidden methods stay hidden from interface probes.
type classicDriver struct {
	d *Driver
}

func (x *classicDriver) NewLoop(cfg evcompat.LoopConfig) (evcompat.Loop, error) {
	return x.d.NewLoop(cfg)
}

func (x *classicDriver) Version() string { return classicVersion }

func (x *classicDriver) SetLogHandler(fn func(severity int, msg string)) { x.d.SetLogHandler(fn) }

func (x *classicDriver) HeaderInfo() evcompat.HeaderInfo {
	return evcompat.HeaderInfo{Version: classicVersion}
}

// ancientDriver exposes nothing but loop construction. Its loops are
// wrapped too: a driver this old could not name its backend.
type ancientDriver struct {
	d *Driver
}

func (x *ancientDriver) NewLoop(cfg evcompat.LoopConfig) (evcompat.Loop, error) {
	l, err := newLoop(x.d, cfg)
	if err != nil {
		return nil, err
	}
	return &ancientLoop{l: l}, nil
}

type ancientLoop struct {
	l *loop
}

func (x *ancientLoop) Register(fd int, mask evcompat.EventMask, cb evcompat.Callback) (evcompat.Registration, error) {
	return x.l.Register(fd, mask, cb)
}

func (x *ancientLoop) Deregister(r evcompat.Registration) error { return x.l.Deregister(r) }

func (x *ancientLoop) Dispatch() error { return x.l.Dispatch() }

func (x *ancientLoop) Exit(after time.Duration) error { return x.l.Exit(after) }

func (x *ancientLoop) Close() error { return x.l.Close() }
