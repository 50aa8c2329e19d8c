package native

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"

	"httpbridge/pkg/logger"
)

// DefaultChunkSize is the read size used when streaming request bodies.
const DefaultChunkSize = 32 * 1024

// FastRequest implements Request on top of a fasthttp request context.
type FastRequest struct {
	ctx *fasthttp.RequestCtx
}

// FastResponse implements Response on top of a fasthttp request context.
// The body is streamed through an io.Pipe that fasthttp drains after the
// request handler returns.
type FastResponse struct {
	ctx         *fasthttp.RequestCtx
	chunkSize   int
	maxBodySize int

	mu      sync.Mutex
	started bool
	ended   bool
	pw      *io.PipeWriter

	delivery sync.WaitGroup
	onError  DataErrorHandler
	tooLarge atomic.Bool
}

// FromFastHTTP binds both handles to ctx. chunkSize <= 0 selects
// DefaultChunkSize. maxBodySize > 0 caps the request body handed to OnData;
// fasthttp does not enforce its own limit on streamed bodies.
func FromFastHTTP(ctx *fasthttp.RequestCtx, chunkSize, maxBodySize int) (*FastRequest, *FastResponse) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &FastRequest{ctx: ctx}, &FastResponse{ctx: ctx, chunkSize: chunkSize, maxBodySize: maxBodySize}
}

func (r *FastRequest) Method() string {
	return strings.ToLower(string(r.ctx.Method()))
}

func (r *FastRequest) URL() string {
	p := string(r.ctx.URI().PathOriginal())
	if p == "" {
		return "/"
	}
	return p
}

func (r *FastRequest) Query() string {
	return string(r.ctx.URI().QueryString())
}

func (r *FastRequest) Header(name string) string {
	return string(r.ctx.Request.Header.Peek(name))
}

// ForEach visits headers with lower-cased names. fasthttp reports repeated
// header lines separately; they are joined with ", " so that every name is
// visited once, in first-seen order.
func (r *FastRequest) ForEach(fn func(name, value string)) {
	var order []string
	values := make(map[string][]string)
	r.ctx.Request.Header.VisitAll(func(k, v []byte) {
		name := strings.ToLower(string(k))
		if _, ok := values[name]; !ok {
			order = append(order, name)
		}
		values[name] = append(values[name], string(v))
	})
	for _, name := range order {
		fn(name, strings.Join(values[name], ", "))
	}
}

// WriteStatus expects "<code> <reason>". An unparsable code is sent as 500.
func (r *FastResponse) WriteStatus(status string) {
	code, reason := parseStatus(status)
	if code == 0 {
		logger.Warn("invalid_status_line", "status", status)
		code, reason = fasthttp.StatusInternalServerError, ""
	}
	r.ctx.SetStatusCode(code)
	if reason != "" {
		r.ctx.Response.Header.SetStatusMessage([]byte(reason))
	}
	r.start()
}

func (r *FastResponse) WriteHeader(name, value string) {
	r.ctx.Response.Header.Add(name, value)
}

func (r *FastResponse) Write(chunk []byte) {
	pw := r.start()
	if _, err := pw.Write(chunk); err != nil {
		// client went away; fasthttp closed the reader
		logger.Debug("response_write_failed", "error", err)
	}
}

func (r *FastResponse) End() {
	pw := r.start()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	r.ended = true
	_ = pw.Close()
}

// start switches the response to a streamed body on first use.
func (r *FastResponse) start() *io.PipeWriter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		pr, pw := io.Pipe()
		r.ctx.Response.Header.SetNoDefaultContentType(true)
		r.ctx.SetBodyStream(pr, -1)
		r.pw = pw
		r.started = true
	}
	return r.pw
}

// OnDataError registers the handler called when delivery stops early.
func (r *FastResponse) OnDataError(h DataErrorHandler) {
	r.onError = h
}

// OnData starts delivering the request body to h on a separate goroutine.
func (r *FastResponse) OnData(h DataHandler) {
	r.delivery.Add(1)
	go func() {
		defer r.delivery.Done()
		if body := r.ctx.RequestBodyStream(); body != nil {
			r.deliverStream(body, h)
			return
		}
		b := r.ctx.Request.Body()
		if r.maxBodySize > 0 && len(b) > r.maxBodySize {
			r.fail(ErrBodyTooLarge, nil, h)
			return
		}
		h(append([]byte(nil), b...), true)
	}()
}

func (r *FastResponse) deliverStream(body io.Reader, h DataHandler) {
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	if cap(bb.B) < r.chunkSize {
		bb.B = make([]byte, r.chunkSize)
	}
	buf := bb.B[:r.chunkSize]

	// hold one chunk back so the final one can be flagged
	var pending []byte
	total := 0
	for {
		n, err := body.Read(buf)
		if n > 0 {
			total += n
			if r.maxBodySize > 0 && total > r.maxBodySize {
				r.fail(ErrBodyTooLarge, pending, h)
				return
			}
			if pending != nil {
				h(pending, false)
			}
			pending = append([]byte(nil), buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("request_body_read_failed", "error", err)
			r.fail(err, pending, h)
			return
		}
	}
	if pending == nil {
		pending = []byte{}
	}
	h(pending, true)
}

// fail ends delivery after hand-over of pending. The rest of the engine body
// is left unread.
func (r *FastResponse) fail(err error, pending []byte, h DataHandler) {
	if errors.Is(err, ErrBodyTooLarge) {
		r.tooLarge.Store(true)
		logger.Warn("request_body_too_large", "limit", r.maxBodySize)
	}
	if r.onError == nil {
		if pending == nil {
			pending = []byte{}
		}
		h(pending, true)
		return
	}
	if pending != nil {
		h(pending, false)
	}
	r.onError(err)
}

// BodyTooLarge reports whether delivery stopped at the body size limit. It
// is only meaningful after Wait.
func (r *FastResponse) BodyTooLarge() bool {
	return r.tooLarge.Load()
}

// Wait blocks until request body delivery started by OnData has finished.
// The fasthttp handler must not return before that.
func (r *FastResponse) Wait() {
	r.delivery.Wait()
}

func parseStatus(s string) (int, string) {
	s = strings.TrimSpace(s)
	codeStr, reason, _ := strings.Cut(s, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 || code > 999 {
		return 0, ""
	}
	return code, strings.TrimSpace(reason)
}
