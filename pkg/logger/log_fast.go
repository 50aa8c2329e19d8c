package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/valyala/fasthttp"
)

// SafeHeadersFast builds a header summary for fasthttp requests with
// credentials masked.
func SafeHeadersFast(ctx *fasthttp.RequestCtx) string {
	parts := make([]string, 0)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		key := string(k)
		val := redactHeaderValue(key, string(v))
		parts = append(parts, key+"="+val)
	})
	return strings.Join(parts, "; ")
}

// LogRequestFast logs a concise, safe summary of an incoming fasthttp request.
// Nothing is formatted unless debug logging is enabled.
func LogRequestFast(ctx *fasthttp.RequestCtx) {
	if Log == nil || !Log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	Log.Debug("incoming_request",
		"method", string(ctx.Method()),
		"path", string(ctx.Path()),
		"remote", ctx.RemoteAddr().String(),
		"headers", SafeHeadersFast(ctx),
	)
}
