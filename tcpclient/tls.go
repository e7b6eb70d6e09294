// File: tcpclient/tls.go
//
// UpgradeTLS wraps an already-dialed connection in a TLS client, used by
// the websocket package for wss:// targets. Performed synchronously on
// the caller's goroutine, consistent with Connect's documented
// synchronous-connect workaround — there is no async TLS handshake
// primitive in this from-scratch module either.
package tcpclient

import (
	"context"
	"crypto/tls"

	"github.com/corvidlabs/wsloop/errs"
)

// UpgradeTLS performs a TLS client handshake over the existing connection
// and replaces it with the TLS-wrapped one. Must be called before any
// Send/Recv traffic and before the Client has been registered with the
// Executor's poll loop for data transfer (Connect already registers it
// for connect-only polling, which UpgradeTLS tolerates).
func (c *Client) UpgradeTLS(ctx context.Context, cfg *tls.Config) error {
	conn := c.getConn()
	if conn == nil {
		return errs.ErrNotConnected
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return errs.TransportError(err)
	}
	c.connMu.Lock()
	c.conn = tlsConn
	c.connMu.Unlock()

	// crypto/tls.Conn does not implement syscall.Conn, so the Executor's
	// fd-based Reactor can never report readiness for it. Fall back to a
	// dedicated goroutine that polls the installed handlers directly with
	// short blocking attempts instead of real fd multiplexing.
	c.startFallbackPoller()
	return nil
}
