// Package httpclient is the thin HTTP request/response façade spec.md §1
// treats as an external collaborator and §6 sketches the contract for:
// translate a Request into a configured transport.Handle, attach it to an
// Executor, await the round trip, and translate the outcome into a Response.
// Grounded on the teacher's client/facade.go (Config/NewClient/Close
// lifecycle shape, context-driven loops) generalized from a WebSocket-only
// façade into the general HTTP façade spec.md §6 names, and on
// lowlevel/client/facade.go for the thinner single-shot request idiom.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/corvidlabs/wsloop/cookie"
	"github.com/corvidlabs/wsloop/errs"
	"github.com/corvidlabs/wsloop/executor"
	"github.com/corvidlabs/wsloop/pool"
	"github.com/corvidlabs/wsloop/transport"
)

// Do records its counters in each Executor's own control.MetricsRegistry
// (exec.Metrics) under the "httpclient.*" key namespace rather than a
// package-global registry: requests_total and failures_total count calls,
// and last_status holds the latest response status, so callers inspecting
// one Executor's metrics see only the load that Executor actually carried.

// Request carries the fields spec.md §6 lists for the external HTTP
// request collaborator.
type Request struct {
	Method          string
	URL             string
	Header          http.Header
	Cookies         []cookie.Cookie
	Body            transport.BodySource
	FollowRedirects bool
	Verbose         bool
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	PrePerform      func(*http.Request) error
	PostPerform     func(*http.Response) error
}

// Response carries the fields spec.md §6 lists for the external HTTP
// response collaborator.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Cookies    []cookie.Cookie
	Body       []byte
}

// handlePool recycles transport.Handle values across requests the way
// spec.md §4.B's Reset() contract intends: Do draws a Handle, configures
// it, runs the request, and returns it to the pool, which resets it
// before the next Get hands it back out — ground: pool/objpool.go's
// ResettablePool, wired here as the one consumer that actually needs
// Handle reuse (tcpclient.Client and websocket.Conn each own exactly one
// Handle for their lifetime, so they have no pooling need; a
// request-per-call façade does).
var handlePool = pool.NewResettablePool(transport.New)

// Do configures a transport.Handle from req (with a buffered response
// sink), attaches it to exec, runs the round trip on its own goroutine and
// awaits it, and translates the outcome into a Response. A
// non-2xx status is not itself an error (matching spec.md §7: "the HTTP
// façade translates non-OK into TransportError" refers to transport-level
// failure, not application-level status codes); network/transport
// failures surface as a wrapped errs.TransportError.
func Do(ctx context.Context, exec *executor.Executor, req *Request) (*Response, error) {
	if req.URL == "" {
		return nil, errs.New(errs.CodeInvalidOption, "httpclient: empty URL")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	h := handlePool.Get()
	defer handlePool.Put(h)

	if err := h.SetURL(req.URL); err != nil {
		return nil, err
	}
	if err := h.SetMethod(method); err != nil {
		return nil, err
	}
	if err := h.SetBody(req.Body); err != nil {
		return nil, err
	}
	if err := h.SetSink(transport.BodySink{Kind: transport.SinkBuffer}); err != nil {
		return nil, err
	}
	h.SetFlag(transport.FlagVerbose, req.Verbose)

	reqID := uuid.New()
	if req.Verbose {
		fmt.Fprintf(os.Stdout, "* %s %s %s\n", reqID, method, req.URL)
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	// Do's own attach/await/detach mirrors executor.Exec's shape (spec.md
	// §4.B "a handle belongs to at most one Executor at any time") without
	// routing the *Response payload through the executor package's
	// transport.Result, which has no room for an arbitrary value — the
	// round trip itself still runs on its own goroutine and only posts
	// the final outcome back, same as tcpclient.Client.Connect does for
	// its own synchronous-dial workaround.
	if err := h.AttachExecutor(exec); err != nil {
		return nil, err
	}
	fut := executor.NewCompletedLaterFuture[*Response]()
	go func() {
		defer h.DetachExecutor(exec)
		resp, err := perform(reqCtx, req, method, h)
		if err != nil {
			h.Fire(transport.Result{Code: transport.ResultTransportError, Err: err})
		} else {
			h.Fire(transport.Result{Code: transport.ResultOK})
		}
		fut.Resolve(resp, err)
	}()

	res := fut.Future.Wait(reqCtx)
	bumpCounter(exec, "httpclient.requests_total")
	if res.Err != nil {
		bumpCounter(exec, "httpclient.failures_total")
		if req.Verbose {
			fmt.Fprintf(os.Stdout, "* %s failed: %v\n", reqID, res.Err)
			dumpDebug(exec)
		}
		if res.Err == context.DeadlineExceeded || res.Err == context.Canceled {
			return nil, errs.ErrAborted
		}
		return nil, errs.TransportError(res.Err)
	}

	resp := res.Value
	if exec.Metrics != nil {
		exec.Metrics.Set("httpclient.last_status", resp.StatusCode)
	}
	if req.Verbose {
		fmt.Fprintf(os.Stdout, "* %s < %d\n", reqID, resp.StatusCode)
		dumpDebug(exec)
	}
	return resp, nil
}

// bumpCounter increments a monotonic counter in exec's MetricsRegistry.
// Grounded on control/metrics.go's Set/GetSnapshot shape; wsloop only
// needs plain counters so no separate increment primitive was added to
// the control package itself.
func bumpCounter(exec *executor.Executor, key string) {
	if exec.Metrics == nil {
		return
	}
	snap := exec.Metrics.GetSnapshot()
	n, _ := snap[key].(int)
	exec.Metrics.Set(key, n+1)
}

// dumpDebug prints exec's registered control.DebugProbes output, the
// verbose-tracing hook spec.md's ambient stack calls for.
func dumpDebug(exec *executor.Executor) {
	if exec.Debug == nil {
		return
	}
	for k, v := range exec.Debug.DumpState() {
		fmt.Fprintf(os.Stdout, "* debug %s = %v\n", k, v)
	}
}

// perform runs the actual round trip synchronously on the goroutine Do
// spawns, translating it into a *Response.
func perform(ctx context.Context, req *Request, method string, h *transport.Handle) (*Response, error) {
	var bodyReader io.Reader
	switch req.Body.Kind {
	case transport.BodyBytes:
		bodyReader = bytes.NewReader(req.Body.Bytes)
	case transport.BodyReader:
		bodyReader = req.Body.Reader
	case transport.BodyPullFunc:
		bodyReader = &pullReader{pull: req.Body.Pull}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return nil, err
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	if req.PrePerform != nil {
		if err := req.PrePerform(httpReq); err != nil {
			return nil, err
		}
	}

	client := &http.Client{}
	if !req.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	if req.ConnectTimeout > 0 {
		client.Timeout = req.ConnectTimeout
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if req.PostPerform != nil {
		if err := req.PostPerform(httpResp); err != nil {
			return nil, err
		}
	}

	body, err := readSink(h, httpResp.Body)
	if err != nil {
		return nil, err
	}

	cookies := make([]cookie.Cookie, 0, len(httpResp.Cookies()))
	for _, c := range httpResp.Cookies() {
		cookies = append(cookies, cookie.Cookie{
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
			Name:   c.Name,
			Value:  c.Value,
		})
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Cookies:    cookies,
		Body:       body,
	}
	return resp, nil
}

// readSink drains body according to h's configured sink. For a SinkWriter
// sink it reports the copied byte count to OnProgress once the copy
// completes; OnHeader is not called here.
func readSink(h *transport.Handle, body io.Reader) ([]byte, error) {
	switch h.Sink.Kind {
	case transport.SinkIgnore:
		_, err := io.Copy(io.Discard, body)
		return nil, err
	case transport.SinkWriter:
		n, err := io.Copy(h.Sink.Writer, body)
		if err != nil {
			return nil, err
		}
		if h.OnProgress != nil {
			h.OnProgress(transport.ProgressInfo{BytesReceived: n})
		}
		return nil, nil
	case transport.SinkPushFunc:
		buf := make([]byte, 32*1024)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				if perr := h.Sink.Push(buf[:n]); perr != nil {
					return nil, perr
				}
			}
			if err == io.EOF {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
		}
	default: // SinkBuffer
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// pullReader adapts a BodyPullFunc into an io.Reader for net/http.
type pullReader struct {
	pull func(buf []byte) (int, error)
}

func (r *pullReader) Read(buf []byte) (int, error) { return r.pull(buf) }

// Get is a convenience wrapper mirroring spec.md §8.1's
// http_request::get(url) end-to-end scenario.
func Get(ctx context.Context, exec *executor.Executor, url string) (*Response, error) {
	return Do(ctx, exec, &Request{Method: http.MethodGet, URL: url})
}
