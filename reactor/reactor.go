// File: reactor/reactor.go
//
// Package reactor multiplexes readiness of many file descriptors behind a
// single poll call, the same role the teacher's reactor/epoll_reactor.go
// plays for its connection set. Unlike the teacher's server-oriented
// reactor (which owns accepted connections long-term), this Reactor is
// driven by the Executor's run loop once per iteration: the Executor
// computes the current interest set of every attached connect-only
// transport.Handle and calls Poll with it, then dispatches readiness back
// to each handle.
//
// A self-pipe is always part of the poll set so Wakeup can interrupt a
// blocked Poll from another goroutine — the Go equivalent of an eventfd,
// used because Go has no portable "wake a blocked poll" primitive.
package reactor

import (
	"os"
	"time"
)

// FDEventType is a bitmask of readiness kinds.
type FDEventType uint32

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// Interest pairs a raw file descriptor with the events the caller wants to
// be notified about.
type Interest struct {
	FD     uintptr
	Events FDEventType
}

// Ready is a single readiness notification returned from Poll.
type Ready struct {
	FD     uintptr
	Events FDEventType
}

// platformPoller is the OS-specific half of the Reactor, grounded on the
// teacher's epollReactor shape (Register/Unregister/Poll/Close) but
// generalized to a stateless-per-call PollOnce so the Executor can pass a
// fresh interest set every iteration instead of maintaining long-lived
// epoll registrations for handles that come and go constantly.
type platformPoller interface {
	// PollOnce blocks up to timeout waiting for readiness on fds, returning
	// the subset that became ready. timeout < 0 blocks indefinitely.
	PollOnce(fds []Interest, timeout time.Duration) ([]Ready, error)
	Close() error
}

// Reactor is the cross-platform poll multiplexer used by the Executor.
type Reactor struct {
	poller platformPoller

	wakeR *os.File
	wakeW *os.File
}

// New constructs a Reactor backed by the best available platform poller
// and an armed self-pipe wakeup.
func New() (*Reactor, error) {
	p, err := newPlatformPoller()
	if err != nil {
		return nil, err
	}
	r, w, err := os.Pipe()
	if err != nil {
		p.Close()
		return nil, err
	}
	return &Reactor{poller: p, wakeR: r, wakeW: w}, nil
}

// Poll blocks until one of fds is ready, the self-pipe is written to via
// Wakeup, or timeout elapses. The returned slice never includes the
// self-pipe fd — a wakeup surfaces only as Poll returning early, possibly
// with an empty Ready slice and a nil error.
func (r *Reactor) Poll(fds []Interest, timeout time.Duration) ([]Ready, error) {
	all := make([]Interest, 0, len(fds)+1)
	all = append(all, fds...)
	wakeFD := r.wakeR.Fd()
	all = append(all, Interest{FD: wakeFD, Events: EventRead})

	ready, err := r.poller.PollOnce(all, timeout)
	if err != nil {
		return nil, err
	}

	out := ready[:0]
	for _, rd := range ready {
		if rd.FD == wakeFD {
			drainPipe(r.wakeR)
			continue
		}
		out = append(out, rd)
	}
	return out, nil
}

// Wakeup interrupts a concurrently blocked Poll call. Safe to call from any
// goroutine, including before Poll has been entered (the byte is buffered
// by the pipe and consumed on the next Poll).
func (r *Reactor) Wakeup() {
	_, _ = r.wakeW.Write([]byte{0})
}

// Close releases the platform poller and self-pipe.
func (r *Reactor) Close() error {
	_ = r.wakeR.Close()
	_ = r.wakeW.Close()
	return r.poller.Close()
}

func drainPipe(f *os.File) {
	var buf [64]byte
	for {
		n, err := f.Read(buf[:])
		if n < len(buf) || err != nil {
			return
		}
	}
}
