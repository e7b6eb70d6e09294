// Package reactor multiplexes socket readiness for the Executor's
// connect-only transport handles. See reactor.go for the cross-platform
// contract and poll_unix.go / poll_windows.go for the platform backends.
package reactor
