//go:build darwin

package evcompat

import (
	"os"

	"golang.org/x/sys/unix"
)

// maybeDisableKqueue sets EVENT_NOKQUEUE before loop construction when
// kqueue is known to be broken here: either the host predates the 10.4
// kernel line, or the driver release predates 1.1b. Drivers honor the
// variable during backend selection.
func maybeDisableKqueue(c *caps) {
	if v, _ := c.runtimeVersion(); macosKqueueBroken() || v < versionOld(1, 1, 'b') {
		_ = os.Setenv("EVENT_NOKQUEUE", "1")
	}
}

// macosKqueueBroken reports whether the host kernel predates Darwin 8, the
// 10.4 line. This is what passes for version detection on macOS.
func macosKqueueBroken() bool {
	release, err := unix.Sysctl("kern.osrelease")
	if err != nil {
		return false
	}
	major := 0
	for i := 0; i < len(release) && release[i] >= '0' && release[i] <= '9'; i++ {
		major = major*10 + int(release[i]-'0')
	}
	return major > 0 && major < 8
}
