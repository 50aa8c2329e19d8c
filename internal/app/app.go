package app

import (
	"context"
	"fmt"
	"net"

	"github.com/valyala/fasthttp"

	"httpbridge/pkg/bridge"
	"httpbridge/pkg/config"
	"httpbridge/pkg/factory"
	"httpbridge/pkg/logger"
	"httpbridge/pkg/server"
	"httpbridge/pkg/telemetry"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	metrics *telemetry.Metrics
	bridge  *server.Server
	srvFast *fasthttp.Server
	state   string
}

// New validates the configuration and wires the bridge. It does not listen;
// call Run for that.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if err := config.ValidateConfig(&eff); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := eff.Config

	policy, err := cfg.URIPolicy()
	if err != nil {
		return nil, err
	}
	importer := bridge.NewImporter(
		factory.NewURIFactory(),
		factory.NewServerRequestFactory(),
		factory.NewStreamFromResourceFactory(),
		policy,
	)

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate, state: "new"}

	opts := server.Options{
		Importer:        importer,
		Exporter:        bridge.NewExporter(),
		ResponseFactory: factory.NewResponseFactory(),
		Handler:         newEchoHandler(factory.NewResponseFactory(), version),
		RateLimit: server.RateLimit{
			RPS:   cfg.Server.RateLimit.RPS,
			Burst: cfg.Server.RateLimit.Burst,
		},
		ChunkSize:   int(cfg.Bridge.ChunkSize.Int64()),
		MaxBodySize: int(cfg.Server.MaxRequestBodySize.Int64()),
	}
	if cfg.MetricsEnabled() {
		a.metrics = telemetry.New()
		opts.Metrics = a.metrics
		opts.MetricsPath = cfg.Metrics.Path
	}
	a.bridge, err = server.New(opts)
	if err != nil {
		return nil, err
	}
	a.srvFast = a.buildHTTP()

	logger.Info("bridge_configured",
		"uri_mode", policy.Mode(),
		"chunk_size", cfg.Bridge.ChunkSize.String(),
		"stream_request_body", cfg.StreamRequestBody(),
		"metrics", cfg.MetricsEnabled(),
	)
	return a, nil
}

// Run listens on the configured address and serves until ctx is cancelled
// or the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.eff.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.eff.Addr, err)
	}
	a.printBanner()
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails. A cancelled
// ctx is not an error; call Shutdown afterwards to drain connections.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.state = "running"
	logger.Info("http_listening", "addr", ln.Addr().String())
	errCh := a.startHTTP(ln)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		a.state = "failed"
		return err
	}
}

// Metrics returns the metrics registry, or nil when metrics are disabled.
func (a *App) Metrics() *telemetry.Metrics { return a.metrics }

// State reports the lifecycle state: new, running, failed, shutting_down or stopped.
func (a *App) State() string { return a.state }
