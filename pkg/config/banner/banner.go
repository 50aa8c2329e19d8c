package banner

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"httpbridge/pkg/config"
)

const banner = `
 _     _   _         _          _     _
| |__ | |_| |_ _ __ | |__  _ __(_) __| | __ _  ___
| '_ \| __| __| '_ \| '_ \| '__| |/ _' |/ _' |/ _ \
| | | | |_| |_| |_) | |_) | |  | | (_| | (_| |  __/
|_| |_|\__|\__| .__/|_.__/|_|  |_|\__,_|\__, |\___|
              |_|                       |___/
`

// Print writes the startup banner for an already validated effective config.
func Print(w io.Writer, eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "env"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	cfg := eff.Config
	if cfg == nil {
		return
	}

	fmt.Fprintln(w, "\n== Bridge =====================================================")
	u := cfg.Bridge.URI
	switch {
	case u.Schema != "" || u.Host != "":
		fmt.Fprintf(w, "- URI policy: %s (schema=%q host=%q)\n", u.Mode, u.Schema, u.Host)
	case u.Mode != "":
		fmt.Fprintf(w, "- URI policy: %s\n", u.Mode)
	default:
		fmt.Fprintln(w, "- URI policy: default")
	}
	fmt.Fprintf(w, "- Chunk size: %s\n", humanize.IBytes(uint64(cfg.Bridge.ChunkSize)))
	fmt.Fprintf(w, "- Max body:   %s\n", humanize.Bytes(uint64(cfg.Server.MaxRequestBodySize)))
	if cfg.StreamRequestBody() {
		fmt.Fprintln(w, "- Request bodies: streamed")
	} else {
		fmt.Fprintln(w, "- Request bodies: buffered")
	}
	if rl := cfg.Server.RateLimit; rl.RPS > 0 {
		fmt.Fprintf(w, "- Rate limit: %s rps (burst %d)\n", humanize.Ftoa(rl.RPS), rl.Burst)
	} else {
		fmt.Fprintln(w, "- Rate limit: disabled")
	}
	if cfg.MetricsEnabled() {
		fmt.Fprintf(w, "- Metrics:    %s\n", cfg.Metrics.Path)
	} else {
		fmt.Fprintln(w, "- Metrics:    disabled")
	}
	fmt.Fprintln(w)
}
