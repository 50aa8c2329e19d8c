package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"httpbridge/pkg/bridge"
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = defaultAddress
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

// StreamRequestBody reports whether request bodies are streamed.
func (c *Config) StreamRequestBody() bool {
	return c.Server.StreamRequestBody == nil || *c.Server.StreamRequestBody
}

// MetricsEnabled reports whether the metrics endpoint is served.
func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled == nil || *c.Metrics.Enabled
}

// URIPolicy builds the importer's URI policy from bridge.uri.
func (c *Config) URIPolicy() (bridge.URIPolicy, error) {
	u := c.Bridge.URI
	return bridge.ParseURIPolicy(u.Mode, u.Schema, u.Host)
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("HTTPBRIDGE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

func boolPtr(v bool) *bool { return &v }
