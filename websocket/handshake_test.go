package websocket

import (
	"bufio"
	"bytes"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRequestOmitsReservedHeadersFromExtra(t *testing.T) {
	u, err := url.Parse("ws://example.com/chat?x=1")
	require.NoError(t, err)
	extra := http.Header{}
	extra.Set("Host", "evil.example.com")
	extra.Set("Origin", "http://example.com")

	req, nonce, err := BuildRequest(u, extra)
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	s := string(req)
	require.Contains(t, s, "GET /chat?x=1 HTTP/1.1\r\n")
	require.Contains(t, s, "Host: example.com\r\n")
	require.NotContains(t, s, "evil.example.com")
	require.Contains(t, s, "Origin: http://example.com\r\n")
	require.Contains(t, s, "Sec-WebSocket-Key: "+nonce+"\r\n")
	require.Contains(t, s, "Sec-WebSocket-Version: 13\r\n")
}

func TestHeaderContainsTokenIsCaseAndWhitespaceInsensitive(t *testing.T) {
	h := http.Header{}
	h.Set("Connection", " Upgrade , keep-alive")
	require.True(t, headerContainsToken(h, "Connection", "upgrade"))
	require.True(t, headerContainsToken(h, "connection", "KEEP-ALIVE"))
	require.False(t, headerContainsToken(h, "Connection", "close"))
}

func TestReadResponseAcceptsValidHandshake(t *testing.T) {
	nonce := "dGhlIHNhbXBsZSBub25jZQ=="
	accept := computeAccept(nonce)
	raw := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	h, err := ReadResponse(bufio.NewReader(bytes.NewReader([]byte(raw))), nonce)
	require.NoError(t, err)
	require.Equal(t, "websocket", h.Get("Upgrade"))
}

func TestReadResponseRejectsWrongStatus(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"
	_, err := ReadResponse(bufio.NewReader(bytes.NewReader([]byte(raw))), "nonce")
	require.Error(t, err)
}

func TestReadResponseRejectsBadAcceptDigest(t *testing.T) {
	raw := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: not-the-right-digest\r\n\r\n"
	_, err := ReadResponse(bufio.NewReader(bytes.NewReader([]byte(raw))), "dGhlIHNhbXBsZSBub25jZQ==")
	require.Error(t, err)
}
