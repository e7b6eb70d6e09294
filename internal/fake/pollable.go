// File: internal/fake/pollable.go
//
// Pollable is a minimal executor.Pollable backed by an os.Pipe, letting
// executor tests exercise RegisterPollable/UnregisterPollable and readiness
// dispatch without opening a real network socket. Grounded on the
// teacher's tests/reactor_core_test.go use of a self-pipe fd pair to drive
// the reactor deterministically in tests.
package fake

import (
	"os"

	"github.com/corvidlabs/wsloop/reactor"
)

// Pollable is a test double implementing executor.Pollable over an
// os.Pipe: writing to W makes R's fd become readable, triggering
// OnReadable on the next poll iteration.
type Pollable struct {
	R, W      *os.File
	OnReadable func()
	OnWritable func()
	closed    bool
}

// NewPollable opens the backing pipe and returns a ready-to-register
// Pollable.
func NewPollable() (*Pollable, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &Pollable{R: r, W: w}, nil
}

// Interest implements executor.Pollable.
func (p *Pollable) Interest() (fd uintptr, events reactor.FDEventType, ok bool) {
	if p.closed {
		return 0, 0, false
	}
	return p.R.Fd(), reactor.EventRead, true
}

// NotifyReadable implements executor.Pollable.
func (p *Pollable) NotifyReadable() {
	if p.OnReadable != nil {
		p.OnReadable()
	}
}

// NotifyWritable implements executor.Pollable.
func (p *Pollable) NotifyWritable() {
	if p.OnWritable != nil {
		p.OnWritable()
	}
}

// Close closes both ends of the pipe.
func (p *Pollable) Close() error {
	p.closed = true
	_ = p.W.Close()
	return p.R.Close()
}
