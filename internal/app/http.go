package app

import (
	"net"
	"os"
	"time"

	"github.com/valyala/fasthttp"

	"httpbridge/pkg/config/banner"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "" && a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(os.Stdout, a.eff, verStr)
}

// buildHTTP creates the fasthttp server around the bridge handler.
func (a *App) buildHTTP() *fasthttp.Server {
	cfg := a.eff.Config

	const (
		readBufferSize       = 64 * 1024       // 64 KiB read buffer per connection
		concurrency          = 0               // unlimited concurrency (0 means unlimited in fasthttp)
		maxKeepaliveDuration = 2 * time.Minute // max duration for keep-alive connection
		name                 = "httpbridge"
	)
	return &fasthttp.Server{
		Name:                 name,
		Handler:              a.bridge.ServeFastHTTP,
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(cfg.Server.MaxRequestBodySize.Int64()),
		StreamRequestBody:    cfg.StreamRequestBody(),
		Concurrency:          concurrency,
		ReadTimeout:          cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:         cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:          cfg.Server.IdleTimeout.Duration(),
		MaxKeepaliveDuration: maxKeepaliveDuration,
		// bodies are streamed through pipes; the default content type would
		// be wrong for most of them
		NoDefaultContentType: true,
	}
}

// startHTTP serves on ln in a goroutine, returning a channel that delivers errors.
func (a *App) startHTTP(ln net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srvFast.Serve(ln)
	}()
	return errCh
}
