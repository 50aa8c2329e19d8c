package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds listener and fasthttp tuning settings.
type ServerConfig struct {
	Address            string    `yaml:"address"`
	Port               int       `yaml:"port"`
	ReadTimeout        Duration  `yaml:"read_timeout"`
	WriteTimeout       Duration  `yaml:"write_timeout"`
	IdleTimeout        Duration  `yaml:"idle_timeout"`
	MaxRequestBodySize SizeBytes `yaml:"max_request_body_size"`
	// StreamRequestBody hands request bodies to the bridge while they are
	// still being read. Defaults to true.
	StreamRequestBody *bool           `yaml:"stream_request_body"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the token bucket in front of the bridge.
// RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BridgeConfig holds request import settings.
type BridgeConfig struct {
	URI       URIConfig `yaml:"uri"`
	ChunkSize SizeBytes `yaml:"chunk_size"`
}

// URIConfig selects the URI policy. Mode is one of default, explicit or
// forwarded; empty picks explicit when Schema or Host is set.
type URIConfig struct {
	Mode   string `yaml:"mode"`
	Schema string `yaml:"schema"`
	Host   string `yaml:"host"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	v, err := parseSize(raw)
	if err != nil {
		return fmt.Errorf("invalid size value: %q", node.Value)
	}
	*s = v
	return nil
}

// MarshalYAML renders the size exactly, so that it reads back unchanged.
func (s SizeBytes) MarshalYAML() (interface{}, error) {
	return s.exact(), nil
}

func (s SizeBytes) exact() string {
	n := int64(s)
	if n <= 0 {
		return strconv.FormatInt(n, 10)
	}
	for _, u := range []struct {
		size int64
		name string
	}{
		{humanize.GiByte, "GiB"}, {humanize.GByte, "GB"},
		{humanize.MiByte, "MiB"}, {humanize.MByte, "MB"},
		{humanize.KiByte, "KiB"}, {humanize.KByte, "KB"},
	} {
		if n%u.size == 0 {
			return strconv.FormatInt(n/u.size, 10) + u.name
		}
	}
	return strconv.FormatInt(n, 10)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

func parseSize(raw string) (SizeBytes, error) {
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return SizeBytes(i), nil
}

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	v, err := parseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration value: %q", node.Value)
	}
	*d = v
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func parseDuration(raw string) (Duration, error) {
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	// allow numeric seconds
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	return Duration(time.Duration(f * float64(time.Second))), nil
}
