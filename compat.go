package evcompat

import (
	"fmt"
	"runtime"
)

// Tier identifies a binary-compatibility generation of the driver interface.
// Two releases in the same nonzero tier have a decent chance of
// interoperating; two releases in different tiers are sure not to.
type Tier int

const (
	// TierUnknown is the tier of unrecognised versions; it is compatible
	// with nothing, itself included.
	TierUnknown Tier = iota
	// TierPre10C covers everything before 1.0c.
	TierPre10C
	// TierPre14 covers 1.0c up to, not including, 1.4.0.
	TierPre14
	// Tier14 covers the 1.4 stable series.
	Tier14
	// Tier20Alpha covers 1.4.99 up to, not including, 2.0.1.
	Tier20Alpha
	// Tier20 covers 2.0.1 and everything after.
	Tier20
)

func (x Tier) String() string {
	switch x {
	case TierPre10C:
		return "pre-1.0c"
	case TierPre14:
		return "1.0c-1.3x"
	case Tier14:
		return "1.4.x"
	case Tier20Alpha:
		return "2.0-alpha"
	case Tier20:
		return "2.0"
	default:
		return "unknown"
	}
}

// TierOf buckets a version code into its compatibility tier.
func TierOf(v VersionCode) Tier {
	switch {
	case v == VersionUnknownOther:
		return TierUnknown
	case v < versionOld(1, 0, 'c'):
		return TierPre10C
	case v < MakeVersion(1, 4, 0):
		return TierPre14
	case v < MakeVersion(1, 4, 99):
		return Tier14
	case v < MakeVersion(2, 0, 1):
		return Tier20Alpha
	default:
		// Everything 2.0 and later should be compatible.
		return Tier20
	}
}

// Compatible reports whether two version codes belong to the same known
// compatibility tier.
func Compatible(a, b VersionCode) bool {
	ta := TierOf(a)
	return ta != TierUnknown && ta == TierOf(b)
}

// IssueLevel grades a known-issue finding, worst last.
type IssueLevel int

const (
	// IssueNone means nothing known to be wrong.
	IssueNone IssueLevel = iota
	// IssueSlow means the combination performs badly under server load.
	IssueSlow
	// IssueBuggy means the combination has known minor bugs.
	IssueBuggy
	// IssueBroken means the combination crashes or corrupts state.
	IssueBroken
)

func (x IssueLevel) String() string {
	switch x {
	case IssueSlow:
		return "slow"
	case IssueBuggy:
		return "buggy"
	case IssueBroken:
		return "broken"
	default:
		return "none"
	}
}

// Finding is the advisory result of [Base.CheckKnownIssues]. The zero value
// means no known issue.
type Finding struct {
	Level   IssueLevel
	Message string
}

// runtimeGOOS is swapped by tests exercising other platforms' rules.
var runtimeGOOS = runtime.GOOS

// threadUnsafeOS names the platform family for the thread-unsafety rule, or
// returns "" where the rule does not apply.
func threadUnsafeOS() string {
	switch runtimeGOOS {
	case "openbsd", "freebsd", "netbsd":
		return "BSD variants"
	case "darwin":
		return "Mac OS X"
	}
	return ""
}

// CheckKnownIssues compares the running driver version and the named polling
// backend against the table of combinations known not to work, logging a
// warning for anything it finds. server selects the stricter server-role
// rules. The result is advisory; nothing is disabled.
//
// It would be better to disable known-bad backends than to warn about them,
// but old releases cannot change backend once initialized, and new releases
// are not actually broken.
func (x *Base) CheckKnownIssues(backend string, server bool) Finding {
	version, vstr := x.caps.runtimeVersion()

	var serious, minor, slow bool
	for i := range x.issues.Backends {
		if row := &x.issues.Backends[i]; row.Backend == backend {
			serious = version < row.SeriousBefore
			minor = version < row.MinorBefore
			slow = version < row.SlowBefore
			break
		}
	}

	// Releases below the threshold do very badly on platforms with
	// user-space threading implementations.
	var unsafeOS string
	if server && version < x.issues.ThreadUnsafeBefore {
		unsafeOS = threadUnsafeOS()
	}

	var f Finding
	switch {
	case unsafeOS != "":
		f = Finding{IssueBroken, fmt.Sprintf(
			"version %s often crashes when running a server with %s; please use release 1.3b or later",
			vstr, unsafeOS)}
	case serious:
		f = Finding{IssueBroken, fmt.Sprintf(
			"there are serious bugs in using %s with version %s; please use the latest release",
			backend, vstr)}
	case minor:
		f = Finding{IssueBuggy, fmt.Sprintf(
			"there are minor bugs in using %s with version %s; you may want to use the latest release",
			backend, vstr)}
	case slow && server:
		f = Finding{IssueSlow, fmt.Sprintf(
			"version %s can be very slow with %s; when running a server, please use the latest release",
			vstr, backend)}
	default:
		return Finding{}
	}

	x.logger.Warning().
		Str("method", backend).
		Str("version", vstr).
		Log(f.Message)
	return f
}

// prerelease140 is the only release with modern layout but no version macro.
const prerelease140 = "1.4.0-beta"

// CheckHeaderCompatibility checks whether the interface definitions this
// binding was built against differ from the running driver enough to crash,
// and warns if so. The compiled-against description comes from the driver's
// [HeaderVersioner], overridden by [WithHeaderInfo]; with neither, or with a
// driver too old to report a runtime version, there is nothing to compare
// and the check stays silent.
func (x *Base) CheckHeaderCompatibility() {
	if x.caps.versionString == nil {
		return
	}
	running := x.caps.versionString()

	switch h := x.header; {
	case h.Version != "":
		// Exact strings on both sides. Easy.
		if h.Version == running {
			return
		}
		compiled := DecodeVersion(h.Version)
		linked := DecodeVersion(running)
		verybad := TierOf(compiled) != TierOf(linked)
		b := x.logger.Notice()
		if verybad {
			b = x.logger.Warning()
		}
		b.Str("compiled", h.Version).
			Str("running", running).
			Log("compiled against one driver interface version, but running with another")
		if verybad {
			x.logger.Warning().Log("this will almost certainly crash")
		} else {
			x.logger.Info().Log("these versions look binary-compatible")
		}
	case h.Era == Era140Beta:
		// Modern layout, no version macro: the headers can only be the one
		// prerelease.
		if running != prerelease140 {
			x.logger.Warning().
				Str("running", running).
				Logf("hard to tell, but this build looks compiled against the %s interface while the running driver reports %s; this will probably crash",
					prerelease140, running)
		}
	case h.Era == Era13:
		if looksMuchNewer(running) {
			x.logger.Warning().
				Str("running", running).
				Logf("hard to tell, but this build looks compiled against a 1.3e-or-earlier interface while the running driver reports %s; this will probably crash",
					running)
		}
	}
}

// looksMuchNewer sniffs whether a version string is from a far newer series
// than the pre-1.4 era, keying off the leading bytes only. Bytes past the
// end of the string read as zero.
func looksMuchNewer(v string) bool {
	return (byteAt(v, 0) == '1' && byteAt(v, 2) == '.' && byteAt(v, 3) > '3') ||
		byteAt(v, 0) > '1'
}

func byteAt(v string, i int) byte {
	if i < len(v) {
		return v[i]
	}
	return 0
}
