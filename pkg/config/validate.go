package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	defaultAddress            = "0.0.0.0"
	defaultPort               = 8080
	defaultReadTimeout        = 10 * time.Second
	defaultWriteTimeout       = 10 * time.Second
	defaultIdleTimeout        = 30 * time.Second
	defaultMaxRequestBodySize = 5 * 1000 * 1000 // 5MB
	defaultChunkSize          = 32 * 1024
	defaultLogLevel           = "info"
	defaultMetricsPath        = "/metrics"

	maxChunkSize = 16 * 1024 * 1024
)

// set defaults, fail fast on critical errors
func ValidateConfig(eff *EffectiveConfigResult) error {
	if eff == nil || eff.Config == nil {
		return fmt.Errorf("effective config is nil")
	}
	if err := eff.Config.ValidateConfig(); err != nil {
		return err
	}
	eff.Addr = eff.Config.Addr()
	return nil
}

// ValidateConfig fills in missing defaults and returns an error if any
// configuration value is invalid.
func (c *Config) ValidateConfig() error {
	s := &c.Server
	if s.Address == "" {
		s.Address = defaultAddress
	}
	if s.Port == 0 {
		s.Port = defaultPort
	}
	if s.Port < 0 || s.Port > math.MaxUint16 {
		return fmt.Errorf("invalid server.port %d", s.Port)
	}
	if s.ReadTimeout.Duration() == 0 {
		s.ReadTimeout = Duration(defaultReadTimeout)
	}
	if s.WriteTimeout.Duration() == 0 {
		s.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if s.IdleTimeout.Duration() == 0 {
		s.IdleTimeout = Duration(defaultIdleTimeout)
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if s.MaxRequestBodySize.Int64() == 0 {
		s.MaxRequestBodySize = SizeBytes(defaultMaxRequestBodySize)
	}
	if s.MaxRequestBodySize < 0 || s.MaxRequestBodySize.Int64() > math.MaxInt32 {
		return fmt.Errorf("invalid server.max_request_body_size %d", s.MaxRequestBodySize)
	}
	if s.StreamRequestBody == nil {
		s.StreamRequestBody = boolPtr(true)
	}

	rl := &s.RateLimit
	if rl.RPS < 0 || rl.Burst < 0 {
		return fmt.Errorf("server.rate_limit values must not be negative")
	}
	if rl.RPS > 0 && rl.Burst == 0 {
		rl.Burst = int(math.Ceil(rl.RPS))
	}

	b := &c.Bridge
	if b.ChunkSize.Int64() == 0 {
		b.ChunkSize = SizeBytes(defaultChunkSize)
	}
	if b.ChunkSize < 0 || b.ChunkSize > maxChunkSize {
		return fmt.Errorf("invalid bridge.chunk_size %d", b.ChunkSize)
	}
	policy, err := c.URIPolicy()
	if err != nil {
		return fmt.Errorf("bridge.uri: %w", err)
	}
	b.URI.Mode = policy.Mode()
	b.URI.Schema = strings.ToLower(strings.TrimSpace(b.URI.Schema))
	b.URI.Host = strings.TrimSpace(b.URI.Host)

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "":
		c.Logging.Level = defaultLogLevel
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}

	if c.Metrics.Enabled == nil {
		c.Metrics.Enabled = boolPtr(true)
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}
	return nil
}
