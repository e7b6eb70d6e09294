// File: websocket/conn.go
//
// Conn is the client-side WebSocket connection state machine: opening
// handshake, fragmentation reassembly, control-frame handling, and the
// close handshake. Grounded on the teacher's protocol/connection.go
// (WSConnection's inbox/outbox channels and recvLoop/sendLoop shape),
// generalized from a server-side connection into the client state machine
// spec.md §3/§4.F specifies.
package websocket

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/corvidlabs/wsloop/control"
	"github.com/corvidlabs/wsloop/errs"
	"github.com/corvidlabs/wsloop/executor"
	"github.com/corvidlabs/wsloop/pool"
	"github.com/corvidlabs/wsloop/tcpclient"
	"github.com/corvidlabs/wsloop/websocket/utf8mode"
)

// State is the connection-state FSM described in spec.md §3.
type State int32

const (
	StateInit State = iota
	StateConnect
	StateHandshake
	StateOpen
	StateClientClose
	StateServerClose
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnect:
		return "connect"
	case StateHandshake:
		return "handshake"
	case StateOpen:
		return "open"
	case StateClientClose:
		return "client_close"
	case StateServerClose:
		return "server_close"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// closeCodeAllowed is the allowlist of codes a peer may send (or we may
// send) in a CLOSE frame: reject anything below 1000, the reserved
// "local only" codes 1004/1005/1006/1015, the unassigned 1016-2999
// range, and anything at or above 5000; accept everything else in
// [1000, 4999] (ground: RFC 6455 §7.4, spec close-code allowlist).
func closeCodeAllowed(code int) bool {
	if code < 1000 || code > 4999 {
		return false
	}
	switch code {
	case 1004, 1005, 1006, 1015:
		return false
	}
	if code >= 1016 && code <= 2999 {
		return false
	}
	return true
}

// Conn is one open WebSocket connection.
type Conn struct {
	tcp   *tcpclient.Client
	state atomic.Int32

	reqHeader  http.Header
	respHeader http.Header
	lastURL    *url.URL

	utf8Mode        utf8mode.Mode
	maxFramePayload int
	recvBufferSize  int

	recvMu          sync.Mutex
	parseBuf        []byte
	fragOpcode      Opcode
	fragBuf         []byte
	fragValidPrefix int

	sendMu    sync.Mutex
	sendPool  *pool.SimpleBytePool
	closeOnce sync.Once

	OnOpen    func()
	OnClose   func(code int, reason string)
	OnMessage func(opcode Opcode, data []byte)
	OnPing    func(data []byte)
	OnPong    func(data []byte)
}

// Dial performs the TCP connect and WebSocket opening handshake against
// rawURL (ws:// or wss://), returning an open Conn.
func Dial(ctx context.Context, exec *executor.Executor, rawURL string, header http.Header) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errs.New(errs.CodeInvalidArgument, "invalid URL: "+err.Error())
	}

	var useTLS bool
	switch u.Scheme {
	case "ws":
		useTLS = false
	case "wss":
		useTLS = true
	default:
		return nil, errs.New(errs.CodeInvalidArgument, "unsupported scheme: "+u.Scheme)
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if useTLS {
			port = "443"
		} else {
			port = "80"
		}
	}

	wsCfg := exec.Config.WebSocketConfig(control.WebSocketConfig{
		UTF8Mode:        int(utf8mode.Pedantic),
		MaxFramePayload: 0,
	})
	tcpCfg := exec.Config.TCPConfig(control.TCPConfig{ReadBufferSize: 4096})

	c := &Conn{
		tcp:             tcpclient.New(exec),
		reqHeader:       header,
		lastURL:         u,
		utf8Mode:        utf8mode.Mode(wsCfg.UTF8Mode),
		maxFramePayload: wsCfg.MaxFramePayload,
		recvBufferSize:  tcpCfg.ReadBufferSize,
		sendPool:        pool.NewSimpleBytePool(1, 512),
		respHeader:      make(http.Header),
	}
	c.state.Store(int32(StateConnect))

	res := c.tcp.Connect(ctx, "tcp", host+":"+port).Wait(ctx)
	if res.Err != nil {
		return nil, res.Err
	}

	if useTLS {
		if err := c.tcp.UpgradeTLS(ctx, &tls.Config{ServerName: host}); err != nil {
			return nil, err
		}
	}

	c.state.Store(int32(StateHandshake))
	if err := c.handshake(u); err != nil {
		_ = c.tcp.Disconnect()
		c.state.Store(int32(StateClosed))
		return nil, err
	}

	c.state.Store(int32(StateOpen))
	if c.OnOpen != nil {
		c.OnOpen()
	}
	go c.recvLoop(ctx)

	return c, nil
}

func (c *Conn) handshake(u *url.URL) error {
	reqBytes, nonce, err := BuildRequest(u, c.reqHeader)
	if err != nil {
		return err
	}
	conn := c.tcp.Conn()
	if conn == nil {
		return errs.ErrNotConnected
	}
	if _, err := conn.Write(reqBytes); err != nil {
		return errs.TransportError(err)
	}
	br := bufio.NewReader(conn)
	respHeader, err := ReadResponse(br, nonce)
	if err != nil {
		return err
	}
	c.respHeader = respHeader
	if br.Buffered() > 0 {
		leftover := make([]byte, br.Buffered())
		_, _ = br.Read(leftover)
		c.recvMu.Lock()
		c.parseBuf = append(c.parseBuf, leftover...)
		c.recvMu.Unlock()
	}
	return nil
}

// State returns the current connection state.
func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) recvLoop(ctx context.Context) {
	buf := make([]byte, c.recvBufferSize)
	for {
		if c.State() == StateClosed {
			return
		}
		res := c.tcp.Recv(ctx, buf).Wait(ctx)
		if res.Err != nil {
			c.teardown(1006, "transport error: "+res.Err.Error())
			return
		}
		if res.Value == 0 {
			c.teardown(1006, "connection closed")
			return
		}

		c.recvMu.Lock()
		c.parseBuf = append(c.parseBuf, buf[:res.Value]...)
		for {
			f, n, ok, derr := DecodeFrame(c.parseBuf)
			if derr != nil {
				c.recvMu.Unlock()
				c.closeWithCode(1002, derr.Error())
				return
			}
			if !ok {
				break
			}
			c.parseBuf = c.parseBuf[n:]
			c.recvMu.Unlock()
			if stop := c.handleFrame(f); stop {
				return
			}
			c.recvMu.Lock()
		}
		c.recvMu.Unlock()
	}
}

// handleFrame dispatches one decoded frame and returns true if the
// connection should stop receiving (a close sequence completed).
func (c *Conn) handleFrame(f Frame) bool {
	switch f.Opcode {
	case OpPing:
		if c.OnPing != nil {
			c.OnPing(f.Payload)
		} else {
			_, _ = c.sendFrame(Frame{FIN: true, Opcode: OpPong, Payload: f.Payload})
		}
		return false
	case OpPong:
		if c.OnPong != nil {
			c.OnPong(f.Payload)
		}
		return false
	case OpClose:
		if len(f.Payload) == 1 {
			c.closeWithCode(1002, "invalid close payload length")
			return true
		}
		code, reason := parseCloseFrame(f.Payload)
		if len(f.Payload) >= 2 {
			if !closeCodeAllowed(code) {
				c.closeWithCode(1002, "invalid close code")
				return true
			}
			if !utf8.Valid([]byte(reason)) {
				c.closeWithCode(1007, "invalid utf8 in close reason")
				return true
			}
		}
		wasClientInitiated := c.State() == StateClientClose
		if !wasClientInitiated {
			c.state.Store(int32(StateServerClose))
			_, _ = c.sendFrame(Frame{FIN: true, Opcode: OpClose, Payload: f.Payload})
		}
		c.finishClose(code, reason)
		return true
	case OpText, OpBinary, OpContinuation:
		return c.handleDataFrame(f)
	default:
		c.closeWithCode(1002, "unknown opcode")
		return true
	}
}

func (c *Conn) handleDataFrame(f Frame) bool {
	if f.Opcode != OpContinuation {
		if c.fragBuf != nil {
			c.closeWithCode(1002, "expected continuation frame")
			return true
		}
		c.fragOpcode = f.Opcode
		c.fragBuf = append([]byte(nil), f.Payload...)
		c.fragValidPrefix = 0
	} else {
		if c.fragBuf == nil {
			c.closeWithCode(1002, "unexpected continuation frame")
			return true
		}
		c.fragBuf = append(c.fragBuf, f.Payload...)
	}

	if c.maxFramePayload > 0 && len(c.fragBuf) > c.maxFramePayload {
		c.closeWithCode(1009, "message too big")
		return true
	}

	// Incrementally validate only the unvalidated suffix: fragValidPrefix
	// tracks the byte offset already confirmed valid by a prior call, so
	// reassembly never re-scans bytes a previous frame already accepted.
	if c.fragOpcode == OpText && c.utf8Mode != utf8mode.None {
		verdict, off := utf8mode.Validate(c.utf8Mode, c.fragBuf[c.fragValidPrefix:], f.FIN)
		switch verdict {
		case utf8mode.Invalid:
			c.closeWithCode(1007, "invalid UTF-8")
			return true
		case utf8mode.ValidIncomplete:
			c.fragValidPrefix += off
		case utf8mode.Valid:
			c.fragValidPrefix = len(c.fragBuf)
		}
		if f.FIN && verdict != utf8mode.Valid {
			c.closeWithCode(1007, "invalid UTF-8")
			return true
		}
	}

	if !f.FIN {
		return false
	}

	msg := c.fragBuf
	opcode := c.fragOpcode
	c.fragBuf = nil
	c.fragValidPrefix = 0
	if c.OnMessage != nil {
		c.OnMessage(opcode, msg)
	}
	return false
}

func parseCloseFrame(payload []byte) (int, string) {
	if len(payload) < 2 {
		return 1005, ""
	}
	code := int(payload[0])<<8 | int(payload[1])
	return code, string(payload[2:])
}

// sendFrame encodes and writes f on the single-writer send path. The
// encode buffer (header, mask key and masked payload) is drawn from
// sendPool (pool/bytepool.go's RingBuffer-backed free list) rather than
// allocated fresh per frame; a frame larger than the pooled 512 bytes
// makes EncodeFrame's append grow it, and the grown buffer is what goes
// back to the pool;
// sendMu already serializes every call here, so the single pooled buffer
// is never contended. SendAll's Wait blocks until the whole frame has
// been written, so the buffer is safe to return to the pool once it
// returns.
func (c *Conn) sendFrame(f Frame) (int, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	scratch := c.sendPool.Get()
	buf, err := EncodeFrame(scratch[:0], f)
	if err != nil {
		c.sendPool.Put(scratch)
		return 0, err
	}
	res := c.tcp.SendAll(context.Background(), buf).Wait(context.Background())
	c.sendPool.Put(buf)
	return res.Value, res.Err
}

// Send writes a TEXT or BINARY message as a single unfragmented frame.
func (c *Conn) Send(opcode Opcode, data []byte) error {
	if c.State() != StateOpen {
		return errs.ErrNotConnected
	}
	_, err := c.sendFrame(Frame{FIN: true, Opcode: opcode, Payload: data})
	return err
}

// Ping sends a PING control frame.
func (c *Conn) Ping(data []byte) error {
	_, err := c.sendFrame(Frame{FIN: true, Opcode: OpPing, Payload: data})
	return err
}

// Close initiates the client-side close handshake with code/reason.
func (c *Conn) Close(code int, reason string) error {
	if !closeCodeAllowed(code) {
		return errs.New(errs.CodeInvalidArgument, fmt.Sprintf("disallowed close code %d", code))
	}
	if !c.state.CompareAndSwap(int32(StateOpen), int32(StateClientClose)) {
		return nil
	}
	payload := make([]byte, 2+len(reason))
	payload[0] = byte(code >> 8)
	payload[1] = byte(code)
	copy(payload[2:], reason)
	_, err := c.sendFrame(Frame{FIN: true, Opcode: OpClose, Payload: payload})
	return err
}

func (c *Conn) closeWithCode(code int, reason string) {
	_ = c.Close(code, reason)
	c.finishClose(code, reason)
}

func (c *Conn) teardown(code int, reason string) {
	c.finishClose(code, reason)
}

func (c *Conn) finishClose(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		_ = c.tcp.Disconnect()
		if c.OnClose != nil {
			c.OnClose(code, reason)
		}
	})
}

// ResponseHeader returns the server's handshake response header.
func (c *Conn) ResponseHeader() http.Header { return c.respHeader }

// SetUTF8Mode configures the strictness level applied to TEXT frames.
func (c *Conn) SetUTF8Mode(mode utf8mode.Mode) { c.utf8Mode = mode }

// SetMaxFramePayload bounds the reassembled message size this Conn
// accepts; exceeding it closes the connection with 1009 (message too
// big). limit <= 0 disables the check (the default).
func (c *Conn) SetMaxFramePayload(limit int) { c.maxFramePayload = limit }
