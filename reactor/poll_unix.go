//go:build unix

// File: reactor/poll_unix.go
//
// Generic unix poll(2) backend, grounded on the teacher's epollReactor
// (reactor/epoll_reactor.go) but using golang.org/x/sys/unix.Poll instead
// of raw epoll syscalls so the same file serves every unix GOOS the
// teacher's own x/sys dependency already supports, not just Linux.
package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

type unixPoller struct{}

func newPlatformPoller() (platformPoller, error) {
	return &unixPoller{}, nil
}

func (p *unixPoller) PollOnce(fds []Interest, timeout time.Duration) ([]Ready, error) {
	pfds := make([]unix.PollFd, len(fds))
	for i, in := range fds {
		var ev int16
		if in.Events&EventRead != 0 {
			ev |= unix.POLLIN
		}
		if in.Events&EventWrite != 0 {
			ev |= unix.POLLOUT
		}
		pfds[i] = unix.PollFd{Fd: int32(in.FD), Events: ev}
	}

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}

	for {
		n, err := unix.Poll(pfds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		break
	}

	out := make([]Ready, 0, len(pfds))
	for _, pfd := range pfds {
		if pfd.Revents == 0 {
			continue
		}
		var ev FDEventType
		if pfd.Revents&unix.POLLIN != 0 {
			ev |= EventRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			ev |= EventWrite
		}
		if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			ev |= EventError
		}
		out = append(out, Ready{FD: uintptr(pfd.Fd), Events: ev})
	}
	return out, nil
}

func (p *unixPoller) Close() error { return nil }
