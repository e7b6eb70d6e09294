// File: websocket/handshake.go
//
// Client-side RFC 6455 opening handshake: request composition, nonce
// generation, and validation of the server's 101 response, including the
// Sec-WebSocket-Accept check. Grounded on the teacher's protocol/
// handshake.go (DoHandshakeCore header validation) and protocol/
// native_handshake.go (ComputeAcceptKey, containsToken), generalized from
// the teacher's server-side upgrade acceptance into the client-side
// request/response pair spec.md §4.F requires.
//
// Header token comparisons use http.CanonicalHeaderKey and
// strings.EqualFold rather than the teacher's own ad hoc comparator,
// resolving the "suspicious loop condition" the spec's design notes flag
// as an open question not to be reproduced.
package websocket

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/corvidlabs/wsloop/errs"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// newNonce returns a fresh base64-encoded 16-byte Sec-WebSocket-Key value.
func newNonce() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// computeAccept reproduces the server-side Sec-WebSocket-Accept
// computation so the client can verify it, grounded on the teacher's
// ComputeAcceptKey(clientKey string) string.
func computeAccept(nonce string) string {
	h := sha1.New()
	h.Write([]byte(nonce))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// BuildRequest composes the HTTP/1.1 upgrade request bytes for u, with
// extraHeader merged in (e.g. Origin, Sec-WebSocket-Protocol).
func BuildRequest(u *url.URL, extraHeader http.Header) (reqBytes []byte, nonce string, err error) {
	nonce, err = newNonce()
	if err != nil {
		return nil, "", err
	}

	path := u.RequestURI()
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&b, "Sec-WebSocket-Key: %s\r\n", nonce)
	b.WriteString("Sec-WebSocket-Version: 13\r\n")
	for k, vs := range extraHeader {
		ck := http.CanonicalHeaderKey(k)
		if ck == "Host" || ck == "Upgrade" || ck == "Connection" ||
			ck == "Sec-Websocket-Key" || ck == "Sec-Websocket-Version" {
			continue
		}
		for _, v := range vs {
			fmt.Fprintf(&b, "%s: %s\r\n", ck, v)
		}
	}
	b.WriteString("\r\n")
	return []byte(b.String()), nonce, nil
}

// headerContainsToken reports whether header's comma-separated value for
// key contains token, case-insensitively, ground: protocol/handshake.go's
// headerContainsToken but implemented with http.CanonicalHeaderKey +
// strings.EqualFold instead of the teacher's byte-loop comparator.
func headerContainsToken(h http.Header, key, token string) bool {
	for _, v := range h.Values(key) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// ReadResponse parses and validates the server's handshake response from
// r, checking status 101, Upgrade/Connection tokens, and the
// Sec-WebSocket-Accept digest against nonce.
func ReadResponse(r *bufio.Reader, nonce string) (http.Header, error) {
	resp, err := http.ReadResponse(r, nil)
	if err != nil {
		return nil, errs.HandshakeFailed(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		return resp.Header, errs.HandshakeFailed(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}
	if !headerContainsToken(resp.Header, "Upgrade", "websocket") {
		return resp.Header, errs.HandshakeFailed(resp.StatusCode, fmt.Errorf("missing Upgrade: websocket"))
	}
	if !headerContainsToken(resp.Header, "Connection", "Upgrade") {
		return resp.Header, errs.HandshakeFailed(resp.StatusCode, fmt.Errorf("missing Connection: Upgrade"))
	}

	want := computeAccept(nonce)
	got := resp.Header.Get("Sec-WebSocket-Accept")
	if got != want {
		return resp.Header, errs.HandshakeFailed(resp.StatusCode, fmt.Errorf("Sec-WebSocket-Accept mismatch"))
	}

	return resp.Header, nil
}
