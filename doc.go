// Package evcompat is a compatibility and timer-abstraction layer between an
// application and an event-notification driver whose interface has changed
// incompatibly across releases.
//
// # Architecture
//
// A [Driver] supplies the event loop. [Initialize] constructs the process-wide
// [Base] exactly once, probing the driver's optional capabilities (version
// introspection, backend naming, log hook, native persistent timers) a single
// time so the rest of the package never branches on driver generation.
//
// Applications register I/O, timer, and signal interest through the uniform
// [Event] constructors regardless of what the driver itself supports, and use
// [PeriodicTimer] for recurring callbacks: native persistent timeouts when the
// driver has them, transparent re-arm emulation when it does not.
//
// # Version handling
//
// Driver releases are ordered by [VersionCode], a packed integer produced by
// [DecodeVersion] from the historical version-string shapes ("1.4.11-stable",
// "1.3e", and friends). [TierOf] buckets codes into binary-compatibility
// tiers; [Base.CheckKnownIssues] consults a configurable [IssueTable] of
// releases known to misbehave per backend, and
// [Base.CheckHeaderCompatibility] warns when the interface definitions a
// binding was built against disagree with the running driver.
//
// # Logging
//
// Diagnostics go through a logiface logger supplied via [WithLogger]; a nil
// logger silences the package. [Base.InstallLogBridge] re-emits the driver's
// own log messages through the same logger, honoring a process-wide
// suppression substring set by [SuppressLogsContaining].
//
// # Concurrency
//
// The package is single-threaded by contract: the loop, every Event, and
// every PeriodicTimer must be driven from one goroutine. [Initialize]
// requests the driver's lock-free configuration accordingly.
//
// The reference driver lives in the netpoll subpackage.
package evcompat
