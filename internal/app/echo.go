package app

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/valyala/fasthttp"

	"httpbridge/pkg/factory"
	"httpbridge/pkg/message"
)

const healthPath = "/healthz"

// echoHandler is the built-in application: it answers health checks and
// otherwise streams the request body straight back.
type echoHandler struct {
	responses factory.ResponseFactory
	version   string
}

func newEchoHandler(responses factory.ResponseFactory, version string) *echoHandler {
	if version == "" {
		version = "dev"
	}
	return &echoHandler{responses: responses, version: version}
}

func (h *echoHandler) Handle(req *message.ServerRequest) *message.Response {
	if req.Method == message.MethodGet && req.URI.Path == healthPath {
		return h.health(req)
	}

	resp := h.responses(fasthttp.StatusOK, "")
	if ct := req.Headers.Values("content-type"); len(ct) > 0 {
		resp.Headers.Set("content-type", ct...)
	}
	resp.Headers.Set("x-echo-method", string(req.Method))
	resp.Headers.Set("x-echo-uri", req.URI.String())
	resp.Body = req.Body
	return resp
}

func (h *echoHandler) health(req *message.ServerRequest) *message.Response {
	// nothing to read, release the pipe
	_ = req.Body.Close()

	b, _ := json.Marshal(map[string]string{"status": "ok", "version": h.version})
	resp := h.responses(fasthttp.StatusOK, "")
	resp.Headers.Set("content-type", "application/json")
	resp.Body = io.NopCloser(bytes.NewReader(b))
	return resp
}
