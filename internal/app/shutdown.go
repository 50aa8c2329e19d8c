package app

import (
	"context"

	"httpbridge/pkg/logger"
)

// Shutdown stops accepting connections and waits for open ones to finish,
// at most until ctx is done.
func (a *App) Shutdown(ctx context.Context) error {
	a.state = "shutting_down"
	logger.Info("shutdown: requested")

	done := make(chan error, 1)
	go func() {
		logger.Info("shutdown: stopping FastHTTP server")
		done <- a.srvFast.Shutdown()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown: fasthttp shutdown error", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Warn("shutdown: deadline reached with open connections")
		return ctx.Err()
	}

	a.state = "stopped"
	logger.Info("shutdown: complete")
	return nil
}
