// File: transport/handle.go
//
// Package transport defines Handle, the single in-flight-operation record
// the Executor and Reactor multiplex: one TCP connection (or one HTTP
// request riding on top of one), its pause/flag bits, and its completion
// callback. Grounded on the teacher's client/transport_client.go
// (clientTransport wrapping a net.Conn for Send/Recv/SetDeadline/Close)
// generalized into the option-based Handle spec.md §4.B describes.
package transport

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/corvidlabs/wsloop/errs"
)

// ResultCode is the outcome classification delivered to OnDone / a Future.
type ResultCode int

const (
	ResultOK ResultCode = iota
	ResultCanceled
	ResultTimeout
	ResultTransportError
	ResultProtocolError
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultCanceled:
		return "canceled"
	case ResultTimeout:
		return "timeout"
	case ResultTransportError:
		return "transport_error"
	case ResultProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// HandleFlags is an atomic bitmask of handle-wide options.
type HandleFlags uint32

const (
	// FlagConnectOnly marks a handle as hand-polled: the owning layer
	// (tcpclient) drives Send/Recv itself instead of the executor running
	// a full request-to-completion cycle on the handle's behalf.
	FlagConnectOnly HandleFlags = 1 << iota
	// FlagFreshConnect forces a new connection instead of reusing a pool.
	FlagFreshConnect
	// FlagVerbose enables "* "-prefixed trace lines to os.Stdout.
	FlagVerbose
)

// PauseBits is an atomic bitmask controlling direction-level backpressure.
type PauseBits uint32

const (
	PauseRecv PauseBits = 1 << iota
	PauseSend
)

// BodySourceKind selects how a request body is produced.
type BodySourceKind int

const (
	BodyNone BodySourceKind = iota
	BodyBytes
	BodyReader
	BodyPullFunc
)

// BodySource describes the origin of outbound request data.
type BodySource struct {
	Kind   BodySourceKind
	Bytes  []byte
	Reader io.Reader
	Pull   func(buf []byte) (int, error)
}

// BodySinkKind selects how a response body is consumed.
type BodySinkKind int

const (
	SinkIgnore BodySinkKind = iota
	SinkBuffer
	SinkWriter
	SinkPushFunc
)

// BodySink describes the destination of inbound response data.
type BodySink struct {
	Kind   BodySinkKind
	Buffer *bytes.Buffer
	Writer io.Writer
	Push   func(data []byte) error
}

// ProgressInfo reports byte counters to an OnProgress callback.
type ProgressInfo struct {
	BytesSent     int64
	BytesReceived int64
}

// Result is delivered to OnDone exactly once per Handle lifecycle.
type Result struct {
	Code ResultCode
	Err  error
}

// Handle is a single operation attached to at most one Reactor and at most
// one Executor at any instant (enforced by AttachReactor/AttachExecutor
// below, tested under -race in transport/handle_test.go).
//
// The mutex guarding Handle's fields is never re-entered by this package's
// own call sites — unlike the teacher's note about a "recursive lock" in
// the original design, Go's non-reentrant sync.Mutex is used as-is.
type Handle struct {
	mu sync.Mutex

	URL    *url.URL
	Method string
	Header http.Header

	Body BodySource
	Sink BodySink

	OnProgress func(ProgressInfo)
	OnDone     func(Result)
	OnHeader   func(http.Header) bool

	Pause atomic.Uint32
	Flags atomic.Uint32

	Conn net.Conn

	ownedHeaderValues []string

	reactorOwner  any
	executorOwner any
}

// New constructs an empty Handle ready for option configuration.
func New() *Handle {
	return &Handle{Header: make(http.Header)}
}

// SetURL validates and sets the target URL.
func (h *Handle) SetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errs.Wrap(errs.CodeInvalidOption, "invalid URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return errs.New(errs.CodeInvalidOption, "unsupported URL scheme: "+u.Scheme)
	}
	h.mu.Lock()
	h.URL = u
	h.mu.Unlock()
	return nil
}

// SetMethod sets the HTTP method, defaulting empty input to GET.
func (h *Handle) SetMethod(method string) error {
	if method == "" {
		method = http.MethodGet
	}
	h.mu.Lock()
	h.Method = method
	h.mu.Unlock()
	return nil
}

// SetHeader sets (replacing) a header value, retaining ownership of the
// string slice the way the teacher's transport layer pins caller buffers
// for the lifetime of a request.
func (h *Handle) SetHeader(key, value string) error {
	if key == "" {
		return errs.New(errs.CodeInvalidOption, "empty header key")
	}
	h.mu.Lock()
	h.Header.Set(key, value)
	h.ownedHeaderValues = append(h.ownedHeaderValues, value)
	h.mu.Unlock()
	return nil
}

// SetBody configures the outbound body source.
func (h *Handle) SetBody(b BodySource) error {
	h.mu.Lock()
	h.Body = b
	h.mu.Unlock()
	return nil
}

// SetSink configures the inbound body destination.
func (h *Handle) SetSink(s BodySink) error {
	h.mu.Lock()
	h.Sink = s
	h.mu.Unlock()
	return nil
}

// SetFlag sets or clears bits in Flags.
func (h *Handle) SetFlag(flag HandleFlags, on bool) {
	for {
		old := h.Flags.Load()
		var next uint32
		if on {
			next = old | uint32(flag)
		} else {
			next = old &^ uint32(flag)
		}
		if h.Flags.CompareAndSwap(old, next) {
			return
		}
	}
}

// HasFlag reports whether flag is currently set.
func (h *Handle) HasFlag(flag HandleFlags) bool {
	return h.Flags.Load()&uint32(flag) != 0
}

// SetPause sets or clears bits in Pause.
func (h *Handle) SetPause(bit PauseBits, on bool) {
	for {
		old := h.Pause.Load()
		var next uint32
		if on {
			next = old | uint32(bit)
		} else {
			next = old &^ uint32(bit)
		}
		if h.Pause.CompareAndSwap(old, next) {
			return
		}
	}
}

// IsPaused reports whether bit is currently set.
func (h *Handle) IsPaused(bit PauseBits) bool {
	return h.Pause.Load()&uint32(bit) != 0
}

// Reset clears all per-request state so the Handle can be reused for a new
// operation, matching spec.md §4.B's Reset() contract.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.URL = nil
	h.Method = ""
	h.Header = make(http.Header)
	h.Body = BodySource{}
	h.Sink = BodySink{}
	h.OnProgress = nil
	h.OnDone = nil
	h.OnHeader = nil
	h.ownedHeaderValues = nil
	if h.Conn != nil {
		_ = h.Conn.Close()
		h.Conn = nil
	}
	h.Pause.Store(0)
	h.Flags.Store(0)
	h.reactorOwner = nil
	h.executorOwner = nil
}

// AttachReactor records owner as this Handle's reactor, failing if one is
// already attached. Call sites acquire Executor → Reactor → Handle locks
// in that fixed order; this method only ever takes Handle's own lock.
func (h *Handle) AttachReactor(owner any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reactorOwner != nil {
		return errs.ErrWrongReactor
	}
	h.reactorOwner = owner
	return nil
}

// DetachReactor clears the reactor owner if it matches owner.
func (h *Handle) DetachReactor(owner any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reactorOwner == owner {
		h.reactorOwner = nil
	}
}

// ReactorOwner returns the currently attached reactor owner, or nil.
func (h *Handle) ReactorOwner() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reactorOwner
}

// AttachExecutor records owner as this Handle's executor, failing if one
// is already attached.
func (h *Handle) AttachExecutor(owner any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.executorOwner != nil {
		return errs.ErrWrongExecutor
	}
	h.executorOwner = owner
	return nil
}

// DetachExecutor clears the executor owner if it matches owner.
func (h *Handle) DetachExecutor(owner any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.executorOwner == owner {
		h.executorOwner = nil
	}
}

// ExecutorOwner returns the currently attached executor owner, or nil.
func (h *Handle) ExecutorOwner() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.executorOwner
}

// fire invokes OnDone if set, tolerating a nil callback for fire-and-forget
// handles (e.g. ones only consulted via a Future).
func (h *Handle) fire(res Result) {
	h.mu.Lock()
	cb := h.OnDone
	h.mu.Unlock()
	if cb != nil {
		cb(res)
	}
}

// Fire is the exported form used by executor/tcpclient to deliver a final
// result without reaching into package-private state.
func (h *Handle) Fire(res Result) { h.fire(res) }
