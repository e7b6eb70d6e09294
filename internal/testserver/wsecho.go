// File: internal/testserver/wsecho.go
//
// WSEcho is a loopback WebSocket-echo server used both for wsloop's own
// end-to-end tests and as the server side of the differential test
// against github.com/gorilla/websocket (a test-only dependency per
// SPEC_FULL.md — never imported by product code). It echoes every
// message it receives back to the client verbatim, mirroring the
// teacher's examples/echo server loop.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gorilla/websocket"
)

// WSEcho is an httptest.Server upgrading every request to a WebSocket and
// echoing messages back.
type WSEcho struct {
	srv *httptest.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StartWSEcho starts a loopback HTTP server whose sole handler upgrades to
// a WebSocket connection and echoes messages.
func StartWSEcho() *WSEcho {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	})
	return &WSEcho{srv: httptest.NewServer(mux)}
}

// URL returns the ws:// URL of the echo endpoint.
func (s *WSEcho) URL() string {
	return "ws" + s.srv.URL[len("http"):] + "/"
}

// Close shuts the server down.
func (s *WSEcho) Close() { s.srv.Close() }

// StartWSPingServer starts a loopback server that waits for the client's
// first message, replies with a single PING control frame carrying
// payload, then echoes messages like WSEcho (including that first one).
// Waiting for the client's first message — rather than firing the PING
// right after the handshake — gives the caller a deterministic point
// (its own first Send) by which to have installed OnPing, avoiding a
// race against the handshake's own read loop.
func StartWSPingServer(payload string) *WSEcho {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, []byte(payload), time.Now().Add(time.Second)); err != nil {
			return
		}
		if err := conn.WriteMessage(mt, msg); err != nil {
			return
		}

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	})
	return &WSEcho{srv: httptest.NewServer(mux)}
}
