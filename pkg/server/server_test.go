package server

import (
	"encoding/json"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"httpbridge/pkg/bridge"
	"httpbridge/pkg/factory"
	"httpbridge/pkg/message"
	"httpbridge/pkg/stream"
	"httpbridge/pkg/telemetry"
)

func start(t *testing.T, opts Options) *fasthttp.Client {
	t.Helper()
	s, err := New(opts)
	require.NoError(t, err)

	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: s.ServeFastHTTP, StreamRequestBody: true}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})
	c := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	t.Cleanup(c.CloseIdleConnections)
	return c
}

func do(t *testing.T, c *fasthttp.Client, method, uri, body string, headers ...[2]string) *fasthttp.Response {
	t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	for _, h := range headers {
		req.Header.Set(h[0], h[1])
	}
	if body != "" {
		req.SetBodyString(body)
	}
	resp := &fasthttp.Response{}
	require.NoError(t, c.DoTimeout(req, resp, 5*time.Second))
	return resp
}

// echo answers with the request body and a description of the request.
var echo = HandlerFunc(func(req *message.ServerRequest) *message.Response {
	resp := factory.NewResponseFactory()(fasthttp.StatusOK, "")
	resp.Headers.Set("x-uri", req.URI.String())
	resp.Headers.Set("x-method", string(req.Method))
	resp.Headers.Set("x-accept", req.Headers.Values("accept")...)
	resp.Body = req.Body
	return resp
})

func decodeError(t *testing.T, resp *fasthttp.Response) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	return body["error"]
}

func TestServer_Echo(t *testing.T) {
	m := telemetry.New()
	c := start(t, Options{Handler: echo, Metrics: m})

	resp := do(t, c, "POST", "http://example.org/things?x=1", strings.Repeat("data", 10000),
		[2]string{"Accept", "text/html,, application/json "})

	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "http://example.org/things?x=1", string(resp.Header.Peek("x-uri")))
	assert.Equal(t, "POST", string(resp.Header.Peek("x-method")))
	assert.Equal(t, "text/html, application/json", string(resp.Header.Peek("x-accept")))
	assert.Equal(t, strings.Repeat("data", 10000), string(resp.Body()))
}

func TestServer_ForwardedMissingHeaders(t *testing.T) {
	importer := bridge.NewImporter(
		factory.NewURIFactory(),
		factory.NewServerRequestFactory(),
		factory.NewStreamFromResourceFactory(),
		bridge.ForwardedURI(),
	)
	called := false
	c := start(t, Options{Importer: importer, Handler: HandlerFunc(func(*message.ServerRequest) *message.Response {
		called = true
		return nil
	})})

	resp := do(t, c, "GET", "http://localhost/api", "", [2]string{"X-Forwarded-Proto", "https"})
	assert.Equal(t, 400, resp.StatusCode())
	assert.Equal(t, "application/json", string(resp.Header.ContentType()))
	assert.Equal(t, `Missing "x-forwarded-host", "x-forwarded-port" header(s).`, decodeError(t, resp))
	assert.False(t, called)

	resp = do(t, c, "GET", "http://localhost/api?k=v", "",
		[2]string{"X-Forwarded-Proto", "https"},
		[2]string{"X-Forwarded-Host", "public.example"},
		[2]string{"X-Forwarded-Port", "8443"},
	)
	assert.Equal(t, 500, resp.StatusCode())
	assert.True(t, called)
}

func TestServer_InvalidURI(t *testing.T) {
	importer := bridge.NewImporter(
		factory.NewURIFactory(),
		factory.NewServerRequestFactory(),
		factory.NewStreamFromResourceFactory(),
		bridge.ExplicitURI("http", "bad host"),
	)
	c := start(t, Options{Importer: importer, Handler: echo})

	resp := do(t, c, "GET", "http://localhost/", "")
	assert.Equal(t, 400, resp.StatusCode())
	assert.Contains(t, decodeError(t, resp), `invalid uri "http://bad host/"`)
}

func TestServer_NilAndPanickingHandlers(t *testing.T) {
	for name, h := range map[string]Handler{
		"nil": HandlerFunc(func(*message.ServerRequest) *message.Response { return nil }),
		"panic": HandlerFunc(func(*message.ServerRequest) *message.Response {
			panic("boom")
		}),
	} {
		c := start(t, Options{Handler: h})
		resp := do(t, c, "GET", "http://localhost/", "")
		assert.Equal(t, 500, resp.StatusCode(), name)
		assert.Contains(t, resp.Header.String(), "500 Internal Server Error", name)
	}
}

func TestServer_HandlerMayIgnoreBody(t *testing.T) {
	c := start(t, Options{Handler: HandlerFunc(func(*message.ServerRequest) *message.Response {
		resp := factory.NewResponseFactory()(fasthttp.StatusAccepted, "Queued")
		resp.Body = io.NopCloser(strings.NewReader("ok"))
		return resp
	})})

	resp := do(t, c, "PUT", "http://localhost/big", strings.Repeat("x", 1<<20))
	assert.Equal(t, 202, resp.StatusCode())
	assert.Contains(t, resp.Header.String(), "202 Queued")
	assert.Equal(t, "ok", string(resp.Body()))
}

func TestServer_RejectsDeclaredBodyOverLimit(t *testing.T) {
	m := telemetry.New()
	var called atomic.Bool
	c := start(t, Options{
		Handler: HandlerFunc(func(req *message.ServerRequest) *message.Response {
			called.Store(true)
			return echo(req)
		}),
		Metrics:     m,
		MetricsPath: "/metrics",
		MaxBodySize: 64 << 10,
	})

	resp := do(t, c, "POST", "http://localhost/upload", strings.Repeat("x", 256<<10))
	assert.Equal(t, 413, resp.StatusCode())
	assert.True(t, resp.ConnectionClose())
	assert.Equal(t, "request body too large", decodeError(t, resp))
	assert.False(t, called.Load())

	resp = do(t, c, "GET", "http://localhost/metrics", "")
	assert.Contains(t, string(resp.Body()), `httpbridge_imports_total{result="body_too_large"} 1`)

	// a body within the limit still passes
	resp = do(t, c, "POST", "http://localhost/upload", strings.Repeat("y", 64<<10))
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, 64<<10, len(resp.Body()))
}

type zeroReader struct{ n atomic.Int64 }

func (z *zeroReader) Read(p []byte) (int, error) {
	clear(p)
	z.n.Add(int64(len(p)))
	return len(p), nil
}

func TestServer_StreamedBodyOverLimitIsNotBuffered(t *testing.T) {
	const (
		limit = 1 << 20
		chunk = 32 << 10
	)
	var pipe *stream.Pipe
	s, err := New(Options{
		Handler: HandlerFunc(func(req *message.ServerRequest) *message.Response {
			pipe, _ = req.Body.(*stream.Pipe)
			return echo(req)
		}),
		MaxBodySize: limit,
		ChunkSize:   chunk,
	})
	require.NoError(t, err)

	var req fasthttp.Request
	req.Header.SetMethod("POST")
	req.SetRequestURI("http://localhost/upload")
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	// chunked upload far beyond the limit, no Content-Length to reject early
	src := &zeroReader{}
	ctx.Request.SetBodyStream(io.LimitReader(src, 32<<20), -1)

	s.ServeFastHTTP(&ctx)

	assert.Equal(t, 413, ctx.Response.StatusCode())
	assert.True(t, ctx.Response.ConnectionClose())
	var body map[string]string
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	assert.Equal(t, "request body too large", body["error"])

	assert.LessOrEqual(t, src.n.Load(), int64(limit+chunk))
	require.NotNil(t, pipe)
	assert.LessOrEqual(t, pipe.Written(), int64(limit))
	select {
	case <-pipe.Done():
	default:
		t.Fatal("request body stream left open")
	}
}

func TestServer_RateLimit(t *testing.T) {
	m := telemetry.New()
	c := start(t, Options{Handler: echo, Metrics: m, RateLimit: RateLimit{RPS: 0.001, Burst: 1}})

	assert.Equal(t, 200, do(t, c, "GET", "http://localhost/", "").StatusCode())
	resp := do(t, c, "GET", "http://localhost/", "")
	assert.Equal(t, 429, resp.StatusCode())
	assert.Equal(t, "rate limit exceeded", decodeError(t, resp))
}

func TestServer_Metrics(t *testing.T) {
	m := telemetry.New()
	c := start(t, Options{Handler: echo, Metrics: m, MetricsPath: "/metrics"})

	do(t, c, "POST", "http://localhost/a", "hello")

	resp := do(t, c, "GET", "http://localhost/metrics", "")
	require.Equal(t, 200, resp.StatusCode())
	body := string(resp.Body())
	assert.Contains(t, body, `httpbridge_imports_total{result="ok"} 1`)
	assert.Contains(t, body, `httpbridge_responses_total{code="200"} 1`)
	assert.Contains(t, body, `httpbridge_body_bytes_total{direction="in"} 5`)
	assert.Contains(t, body, `httpbridge_body_bytes_total{direction="out"} 5`)
	assert.Contains(t, body, `httpbridge_inflight_requests 0`)
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestLimiterPool_PerKey(t *testing.T) {
	p := newLimiterPool(0.001, 0)
	assert.True(t, p.Allow("a"))
	assert.False(t, p.Allow("a"))
	assert.True(t, p.Allow("b"))
}

func TestLimiterPool_EvictsIdleKeys(t *testing.T) {
	p := newLimiterPool(10, 1)
	for i := 0; i < 1000; i++ {
		p.Allow(net.IPv4(10, 0, byte(i>>8), byte(i)).String())
	}
	require.Equal(t, 1000, p.size())

	p.evict(time.Now())
	assert.Equal(t, 1000, p.size(), "fresh keys survive")

	p.Allow("10.0.0.1")
	p.evict(time.Now().Add(limiterTTL - time.Second))
	assert.Equal(t, 1000, p.size())
	p.evict(time.Now().Add(limiterTTL + time.Second))
	assert.Equal(t, 0, p.size())
}

func TestLimiterPool_CleanupLoopRuns(t *testing.T) {
	p := newLimiterPool(10, 1)
	p.ttl = 10 * time.Millisecond
	p.cleanupPeriod = 5 * time.Millisecond

	p.Allow("192.0.2.1")
	p.Allow("192.0.2.2")
	require.Eventually(t, func() bool { return p.size() == 0 }, 2*time.Second, 5*time.Millisecond)

	// an evicted key starts over with a full bucket
	assert.True(t, p.Allow("192.0.2.1"))
}
