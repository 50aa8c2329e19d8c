package app

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"httpbridge/pkg/config"
)

func newTestApp(t *testing.T, cfg *config.Config) (*App, *fasthttp.Client) {
	t.Helper()
	a, err := New(config.EffectiveConfigResult{Config: cfg, Source: "test"}, "v0.0.1", "none", "unknown")
	require.NoError(t, err)

	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		assert.NoError(t, a.Shutdown(sctx))
		assert.Equal(t, "stopped", a.State())
	})
	c := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	// keep-alive connections would hold Shutdown open
	t.Cleanup(c.CloseIdleConnections)
	return a, c
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

func TestApp_Healthz(t *testing.T) {
	_, c := newTestApp(t, &config.Config{})

	resp := do(t, c, "GET", "http://localhost/healthz", "")
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "application/json", string(resp.Header.ContentType()))

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, map[string]string{"status": "ok", "version": "v0.0.1"}, body)
}

func TestApp_Echo(t *testing.T) {
	_, c := newTestApp(t, &config.Config{})

	payload := strings.Repeat("stream me ", 50000)
	resp := do(t, c, "POST", "http://example.org:8080/echo?x=1", payload,
		[2]string{"Content-Type", "text/plain; charset=utf-8"})

	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "text/plain; charset=utf-8", string(resp.Header.ContentType()))
	assert.Equal(t, "POST", string(resp.Header.Peek("x-echo-method")))
	assert.Equal(t, "http://example.org:8080/echo?x=1", string(resp.Header.Peek("x-echo-uri")))
	assert.Equal(t, payload, string(resp.Body()))
}

func TestApp_EchoBufferedBodies(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.StreamRequestBody = new(bool)
	cfg.Bridge.URI = config.URIConfig{Schema: "https", Host: "public.example"}
	_, c := newTestApp(t, cfg)

	resp := do(t, c, "PUT", "http://localhost/things/1", "abc")
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "https://public.example/things/1", string(resp.Header.Peek("x-echo-uri")))
	assert.Equal(t, "abc", string(resp.Body()))
}

func TestApp_BodyOverLimit(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.MaxRequestBodySize = 64 << 10
	_, c := newTestApp(t, cfg)

	resp := do(t, c, "POST", "http://localhost/upload", strings.Repeat("x", 128<<10))
	assert.Equal(t, 413, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), "request body too large")

	resp = do(t, c, "POST", "http://localhost/upload", strings.Repeat("x", 32<<10))
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, 32<<10, len(resp.Body()))
}

func TestApp_ForwardedPolicy(t *testing.T) {
	cfg := &config.Config{}
	cfg.Bridge.URI.Mode = "forwarded"
	_, c := newTestApp(t, cfg)

	resp := do(t, c, "GET", "http://localhost/x", "")
	assert.Equal(t, 400, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `x-forwarded-proto`)

	resp = do(t, c, "GET", "http://localhost/x", "",
		[2]string{"X-Forwarded-Proto", "https"},
		[2]string{"X-Forwarded-Host", "edge.example"},
		[2]string{"X-Forwarded-Port", "443"},
	)
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "https://edge.example:443/x", string(resp.Header.Peek("x-echo-uri")))
}

func TestApp_Metrics(t *testing.T) {
	a, c := newTestApp(t, &config.Config{})
	require.NotNil(t, a.Metrics())

	do(t, c, "GET", "http://localhost/healthz", "")
	resp := do(t, c, "GET", "http://localhost/metrics", "")
	assert.Equal(t, 200, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `httpbridge_imports_total{result="ok"} 1`)
}

func TestApp_MetricsDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Metrics.Enabled = new(bool)
	a, c := newTestApp(t, cfg)
	assert.Nil(t, a.Metrics())

	// without the metrics route the path is just another echo
	resp := do(t, c, "GET", "http://localhost/metrics", "")
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "http://localhost/metrics", string(resp.Header.Peek("x-echo-uri")))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Bridge.URI = config.URIConfig{Mode: "forwarded", Host: "x"}
	_, err := New(config.EffectiveConfigResult{Config: cfg}, "", "", "")
	assert.Error(t, err)
}
