// Package server runs the bridge inside a fasthttp request handler: it
// imports each request, hands it to an application Handler and exports the
// returned response.
package server

import (
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"httpbridge/pkg/bridge"
	"httpbridge/pkg/factory"
	"httpbridge/pkg/logger"
	"httpbridge/pkg/message"
	"httpbridge/pkg/native"
	"httpbridge/pkg/telemetry"
)

// Handler serves one imported request. Returning nil yields a 500.
type Handler interface {
	Handle(req *message.ServerRequest) *message.Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *message.ServerRequest) *message.Response

func (f HandlerFunc) Handle(req *message.ServerRequest) *message.Response { return f(req) }

// RateLimit configures per-client token buckets. RPS <= 0 disables them.
type RateLimit struct {
	RPS   float64
	Burst int
}

// Options configures New. Handler is required; nil Importer, Exporter and
// ResponseFactory select the defaults.
type Options struct {
	Importer        *bridge.Importer
	Exporter        *bridge.Exporter
	ResponseFactory factory.ResponseFactory
	Handler         Handler
	Metrics         *telemetry.Metrics
	// MetricsPath serves Metrics when both are set.
	MetricsPath string
	RateLimit   RateLimit
	ChunkSize   int
	// MaxBodySize caps request bodies; larger ones are answered with 413.
	// <= 0 disables the cap.
	MaxBodySize int
}

// Server is a fasthttp handler bridging to a Handler.
type Server struct {
	importer  *bridge.Importer
	exporter  *bridge.Exporter
	responses factory.ResponseFactory
	handler   Handler
	metrics   *telemetry.Metrics
	limiter   *limiterPool
	chunkSize int
	maxBody   int

	metricsPath    string
	metricsHandler fasthttp.RequestHandler
}

// New builds a Server from opts.
func New(opts Options) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("server: handler is required")
	}
	s := &Server{
		importer:  opts.Importer,
		exporter:  opts.Exporter,
		responses: opts.ResponseFactory,
		handler:   opts.Handler,
		metrics:   opts.Metrics,
		chunkSize: opts.ChunkSize,
		maxBody:   opts.MaxBodySize,
	}
	if s.importer == nil {
		s.importer = bridge.NewImporter(
			factory.NewURIFactory(),
			factory.NewServerRequestFactory(),
			factory.NewStreamFromResourceFactory(),
			nil,
		)
	}
	if s.exporter == nil {
		s.exporter = bridge.NewExporter()
	}
	if s.responses == nil {
		s.responses = factory.NewResponseFactory()
	}
	if opts.RateLimit.RPS > 0 {
		s.limiter = newLimiterPool(opts.RateLimit.RPS, opts.RateLimit.Burst)
	}
	if opts.Metrics != nil && opts.MetricsPath != "" {
		s.metricsPath = opts.MetricsPath
		s.metricsHandler = fasthttpadaptor.NewFastHTTPHandler(opts.Metrics.Handler())
	}
	return s, nil
}

// ServeFastHTTP is the fasthttp.RequestHandler of the server.
func (s *Server) ServeFastHTTP(ctx *fasthttp.RequestCtx) {
	logger.LogRequestFast(ctx)

	if s.metricsHandler != nil && string(ctx.Path()) == s.metricsPath {
		s.metricsHandler(ctx)
		return
	}

	if s.limiter != nil && !s.limiter.Allow(ctx.RemoteIP().String()) {
		s.metrics.Import(telemetry.ResultRateLimited)
		WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if s.maxBody > 0 && ctx.Request.Header.ContentLength() > s.maxBody {
		s.metrics.Import(telemetry.ResultBodyTooLarge)
		s.bodyTooLarge(ctx)
		return
	}

	tr := s.metrics.Track("bridge")
	req, fres := native.FromFastHTTP(ctx, s.chunkSize, s.maxBody)
	res := newCountingResponse(fres, s.metrics, tr)

	sr, err := s.importer.Import(req, res)
	if err != nil {
		res.finish()
		s.importFailed(ctx, err)
		return
	}
	s.metrics.Import(telemetry.ResultOK)
	tr.Mark("import")

	resp := s.handle(sr)
	tr.Mark("handle")

	s.exporter.Export(resp, res)
	// the engine body must be fully handed over before ctx is released
	fres.Wait()
	if fres.BodyTooLarge() {
		// drops the exported response; its streamed body reader is closed
		ctx.Response.Reset()
		s.bodyTooLarge(ctx)
	}
}

// bodyTooLarge answers 413 and closes the connection, since the rest of the
// request body is never read.
func (s *Server) bodyTooLarge(ctx *fasthttp.RequestCtx) {
	logger.Warn("request_rejected", "reason", telemetry.ResultBodyTooLarge, "limit", s.maxBody, "remote", ctx.RemoteAddr().String())
	ctx.SetConnectionClose()
	WriteJSONError(ctx, fasthttp.StatusRequestEntityTooLarge, native.ErrBodyTooLarge.Error())
}

func (s *Server) importFailed(ctx *fasthttp.RequestCtx, err error) {
	var mhe *bridge.MissingHeaderError
	reason := telemetry.ResultInvalidURI
	if errors.As(err, &mhe) {
		reason = telemetry.ResultMissingHeader
	}
	s.metrics.Import(reason)
	logger.Warn("import_failed", "reason", reason, "error", err, "remote", ctx.RemoteAddr().String())
	WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
}

// handle calls the application handler. Panics and nil responses become a
// 500 so that the native response is always ended.
func (s *Server) handle(sr *message.ServerRequest) (resp *message.Response) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler_panic", "panic", fmt.Sprint(r), "method", string(sr.Method), "uri", sr.URI.String())
			resp = s.responses(fasthttp.StatusInternalServerError, "")
		}
	}()
	resp = s.handler.Handle(sr)
	if resp == nil {
		logger.Error("handler_nil_response", "method", string(sr.Method), "uri", sr.URI.String())
		resp = s.responses(fasthttp.StatusInternalServerError, "")
	}
	return resp
}
