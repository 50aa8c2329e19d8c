package banner

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpbridge/pkg/config"
)

func TestPrint(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{RateLimit: config.RateLimitConfig{RPS: 12.5}},
		Bridge: config.BridgeConfig{URI: config.URIConfig{Schema: "https"}},
	}
	eff := &config.EffectiveConfigResult{Config: cfg, Source: "env"}
	require.NoError(t, config.ValidateConfig(eff))

	var buf bytes.Buffer
	Print(&buf, *eff, "v1.2.3")
	out := buf.String()

	assert.Contains(t, out, "Listen:   0.0.0.0:8080")
	assert.Contains(t, out, "Version:  v1.2.3")
	assert.Contains(t, out, `URI policy: explicit (schema="https" host="")`)
	assert.Contains(t, out, "Chunk size: 32 KiB")
	assert.Contains(t, out, "Max body:   5.0 MB")
	assert.Contains(t, out, "Request bodies: streamed")
	assert.Contains(t, out, "Rate limit: 12.5 rps (burst 13)")
	assert.Contains(t, out, "Metrics:    /metrics")
}

func TestPrint_NilConfig(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, config.EffectiveConfigResult{Addr: ":1"}, "")
	assert.Contains(t, buf.String(), "Listen:   :1")
	assert.NotContains(t, buf.String(), "Version")
}
