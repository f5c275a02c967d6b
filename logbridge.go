package evcompat

import "strings"

// suppressSubstring is the process-wide suppression filter for bridged
// driver log messages. Single-thread contract; no lock.
var suppressSubstring string

// SuppressLogsContaining drops any bridged driver log message that contains
// substr. Only one substring is active at a time, the most recent call
// winning; the empty string clears the filter.
//
// This exists for the narrow case where a driver release is known to log
// something alarming and useless on every run.
func SuppressLogsContaining(substr string) {
	suppressSubstring = substr
}

// logMessageLimit bounds bridged messages, matching the historical wire
// buffer: longer messages are cut to logMessageLimit-1 bytes.
const logMessageLimit = 1024

// InstallLogBridge routes the driver's internal log messages through the
// Base's logger. Drivers without a log hook make this a no-op. Messages are
// bounded, stripped of one trailing newline, filtered per
// [SuppressLogsContaining], and mapped onto logger severities; anything the
// driver emits while the bridge itself is emitting is dropped, so a logger
// that feeds back into the driver cannot recurse.
func (x *Base) InstallLogBridge() {
	if x.caps.setLogHandler == nil {
		return
	}
	x.caps.setLogHandler(x.bridgeLogMessage)
}

func (x *Base) bridgeLogMessage(severity int, msg string) {
	if x.bridging {
		return
	}
	if s := suppressSubstring; s != "" && strings.Contains(msg, s) {
		return
	}
	if len(msg) >= logMessageLimit {
		msg = msg[:logMessageLimit-1]
	} else if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	x.bridging = true
	defer func() { x.bridging = false }()
	switch severity {
	case SeverityDebug:
		x.logger.Debug().
			Str("category", "net").
			Logf("message from event driver: %s", msg)
	case SeverityMsg:
		x.logger.Info().
			Str("category", "net").
			Logf("message from event driver: %s", msg)
	case SeverityWarn:
		x.logger.Warning().
			Str("category", "general").
			Logf("warning from event driver: %s", msg)
	case SeverityErr:
		x.logger.Err().
			Str("category", "general").
			Logf("error from event driver: %s", msg)
	default:
		x.logger.Warning().
			Str("category", "general").
			Logf("message [%d] from event driver: %s", severity, msg)
	}
}
