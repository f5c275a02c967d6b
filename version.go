package evcompat

import "fmt"

// VersionCode packs a driver release into a single unsigned integer, ordered
// so that numeric comparison matches release order. The first three bytes
// hold the major, minor, and patch numbers; the low byte is unused. Releases
// from the old lettered scheme ("1.0a", "1.0b", ...) map the letter onto the
// patch byte, 'a' becoming 1, so "1.0c" orders correctly against "1.0.5".
//
// Threshold tables throughout the package rely on this ordering. Note that
// [VersionUnknownOther] compares lower than every real release, so code that
// needs to treat it specially must check for it before comparing.
type VersionCode uint32

const (
	// VersionUnknownOld identifies a release too old to report its own
	// version at runtime.
	VersionUnknownOld VersionCode = 0

	// VersionUnknownOther identifies a version string that did not match
	// any recognised scheme, or a release stranger than merely old.
	VersionUnknownOther VersionCode = 99 << 8
)

// MakeVersion packs major.minor.patch into a [VersionCode]. Components are
// not range checked; values beyond one byte simply shift out, matching the
// packing's documented domain.
func MakeVersion(major, minor, patch int) VersionCode {
	return VersionCode(uint32(major)<<24 | uint32(minor)<<16 | uint32(patch)<<8)
}

// versionOld packs an old lettered release, 'a' being patch 1.
func versionOld(major, minor int, letter byte) VersionCode {
	return MakeVersion(major, minor, int(letter)-'a'+1)
}

// Major returns the major component.
func (x VersionCode) Major() int { return int(x >> 24) }

// Minor returns the minor component.
func (x VersionCode) Minor() int { return int(x >> 16 & 0xff) }

// Patch returns the patch component.
func (x VersionCode) Patch() int { return int(x >> 8 & 0xff) }

// String renders the code as "major.minor.patch"; the sentinels render as
// the fixed strings "pre-1.0c" and "unknown".
func (x VersionCode) String() string {
	switch x {
	case VersionUnknownOld:
		return versionStringTooOld
	case VersionUnknownOther:
		return "unknown"
	}
	return fmt.Sprintf("%d.%d.%d", x.Major(), x.Minor(), x.Patch())
}

// DecodeVersion maps a version string to its packed code.
//
// Two shapes are recognised:
//
//   - "MAJOR.MINOR.PATCH", optionally followed by a tag separated with '-'
//     or '_' ("1.4.11-stable"), where a single revision letter may sit
//     between the patch number and the separator ("1.4.14b-stable"); the
//     letter does not contribute to the code. A trailing letter with no
//     separator after it ("1.4.14b") matches neither shape.
//   - "MAJOR.MINOR" with at most one trailing letter ("1.3", "1.3e"); the
//     letter maps onto the patch byte, 'a' being 1.
//
// Anything else, including the empty string, decodes to
// [VersionUnknownOther]. The mapping is purely syntactic and performs no
// range checking.
func DecodeVersion(v string) VersionCode {
	// "1.4.11-stable", "1.4.14b-stable", "1.2.3".
	if major, minor, patch, c, e, fields := scanDotted(v); fields == 3 ||
		((fields == 4 || fields == 5) && (c == '-' || c == '_')) ||
		(fields == 5 && isAlpha(c) && (e == '-' || e == '_')) {
		return MakeVersion(major, minor, patch)
	}

	// "1.3e", "1.3".
	if major, minor, c, fields := scanLettered(v); fields == 3 && isAlpha(c) {
		return versionOld(major, minor, c)
	} else if fields == 2 {
		return MakeVersion(major, minor, 0)
	}

	return VersionUnknownOther
}

// scanDotted scans "%u.%u.%u%c%c": three dotted numbers and up to two
// trailing bytes. fields counts the conversions that succeeded before the
// first failure; literal dots must match but are not counted.
func scanDotted(v string) (major, minor, patch int, c, e byte, fields int) {
	s := verScan{s: v}
	if !s.uint(&major) {
		return
	}
	fields++
	if !s.lit('.') {
		return
	}
	if !s.uint(&minor) {
		return
	}
	fields++
	if !s.lit('.') {
		return
	}
	if !s.uint(&patch) {
		return
	}
	fields++
	if !s.next(&c) {
		return
	}
	fields++
	if !s.next(&e) {
		return
	}
	fields++
	return
}

// scanLettered scans "%u.%u%c%c".
func scanLettered(v string) (major, minor int, c byte, fields int) {
	s := verScan{s: v}
	if !s.uint(&major) {
		return
	}
	fields++
	if !s.lit('.') {
		return
	}
	if !s.uint(&minor) {
		return
	}
	fields++
	if !s.next(&c) {
		return
	}
	fields++
	var extra byte
	if !s.next(&extra) {
		return
	}
	fields++
	return
}

// verScan is a cursor over a version string.
type verScan struct {
	s string
	i int
}

// uint consumes a run of decimal digits.
func (x *verScan) uint(out *int) bool {
	start := x.i
	var n uint64
	for x.i < len(x.s) && x.s[x.i] >= '0' && x.s[x.i] <= '9' {
		n = n*10 + uint64(x.s[x.i]-'0')
		x.i++
	}
	if x.i == start {
		return false
	}
	*out = int(uint32(n))
	return true
}

// lit consumes exactly b.
func (x *verScan) lit(b byte) bool {
	if x.i < len(x.s) && x.s[x.i] == b {
		x.i++
		return true
	}
	return false
}

// next consumes any single byte.
func (x *verScan) next(out *byte) bool {
	if x.i < len(x.s) {
		*out = x.s[x.i]
		x.i++
		return true
	}
	return false
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
