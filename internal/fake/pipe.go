// File: internal/fake/pipe.go
//
// Package fake provides small in-memory test doubles used across wsloop's
// unit tests: a net.Conn pipe pair (for tcpclient/websocket tests that
// need a connection without a real socket) and a minimal os.Pipe-backed
// Pollable (for executor tests that exercise
// RegisterPollable/UnregisterPollable without opening a network socket). Grounded on the teacher's
// tests/mock_transport_test.go in-memory transport double, generalized
// from the teacher's api.Transport mock into a plain net.Conn pipe since
// this module's layers all speak net.Conn rather than api.Transport.
package fake

import "net"

// Pipe returns a connected pair of net.Conn values backed by net.Pipe,
// suitable for driving tcpclient.Client or websocket.Conn against a
// synchronous in-memory peer in tests.
func Pipe() (client, server net.Conn) {
	return net.Pipe()
}
