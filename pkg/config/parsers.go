package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"httpbridge/pkg/logger"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr     string
	Config   string
	LogLevel string
	Set      map[string]bool
}

// holds the results of applying environment overrides
type EnvResult struct {
	EnvUsed bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	Source string // "config", "env", or either with "+flags"
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// loads HTTPBRIDGE_* environment variables into a new Config
func ParseConfigEnvs() (*Config, EnvResult, error) {
	envs := map[string]string{
		"ADDR":                  os.Getenv("HTTPBRIDGE_ADDR"),
		"SERVER_ADDRESS":        os.Getenv("HTTPBRIDGE_SERVER_ADDRESS"),
		"SERVER_PORT":           os.Getenv("HTTPBRIDGE_SERVER_PORT"),
		"READ_TIMEOUT":          os.Getenv("HTTPBRIDGE_READ_TIMEOUT"),
		"WRITE_TIMEOUT":         os.Getenv("HTTPBRIDGE_WRITE_TIMEOUT"),
		"IDLE_TIMEOUT":          os.Getenv("HTTPBRIDGE_IDLE_TIMEOUT"),
		"MAX_REQUEST_BODY_SIZE": os.Getenv("HTTPBRIDGE_MAX_REQUEST_BODY_SIZE"),
		"STREAM_REQUEST_BODY":   os.Getenv("HTTPBRIDGE_STREAM_REQUEST_BODY"),
		"RATE_RPS":              os.Getenv("HTTPBRIDGE_RATE_RPS"),
		"RATE_BURST":            os.Getenv("HTTPBRIDGE_RATE_BURST"),

		// uri policy
		"URI_MODE":   os.Getenv("HTTPBRIDGE_URI_MODE"),
		"URI_SCHEMA": os.Getenv("HTTPBRIDGE_URI_SCHEMA"),
		"URI_HOST":   os.Getenv("HTTPBRIDGE_URI_HOST"),
		"CHUNK_SIZE": os.Getenv("HTTPBRIDGE_CHUNK_SIZE"),

		"LOG_LEVEL": os.Getenv("HTTPBRIDGE_LOG_LEVEL"),

		"METRICS_ENABLED": os.Getenv("HTTPBRIDGE_METRICS_ENABLED"),
		"METRICS_PATH":    os.Getenv("HTTPBRIDGE_METRICS_PATH"),
	}

	envUsed := false
	for _, v := range envs {
		if v != "" {
			envUsed = true
			break
		}
	}
	envCfg := &Config{}

	// malformed values are collected so that they fail startup instead of
	// silently falling back to defaults
	var errs []error
	bad := func(key, v string, err error) {
		errs = append(errs, fmt.Errorf("HTTPBRIDGE_%s=%q: %w", key, v, err))
	}

	parseBool := func(key, v string) *bool {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return boolPtr(true)
		case "0", "false", "no":
			return boolPtr(false)
		}
		bad(key, v, errors.New("want true or false"))
		return nil
	}

	if v := envs["ADDR"]; v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			envCfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				envCfg.Server.Port = pi
			} else {
				bad("ADDR", v, err)
			}
		} else {
			envCfg.Server.Address = v
		}
	} else {
		if host := envs["SERVER_ADDRESS"]; host != "" {
			envCfg.Server.Address = host
		}
		if port := envs["SERVER_PORT"]; port != "" {
			if pi, err := strconv.Atoi(strings.TrimSpace(port)); err == nil {
				envCfg.Server.Port = pi
			} else {
				bad("SERVER_PORT", port, err)
			}
		}
	}

	durations := map[string]*Duration{
		"READ_TIMEOUT":  &envCfg.Server.ReadTimeout,
		"WRITE_TIMEOUT": &envCfg.Server.WriteTimeout,
		"IDLE_TIMEOUT":  &envCfg.Server.IdleTimeout,
	}
	for key, dst := range durations {
		if v := envs[key]; v != "" {
			d, err := parseDuration(strings.TrimSpace(v))
			if err != nil {
				bad(key, v, err)
				continue
			}
			*dst = d
		}
	}

	sizes := map[string]*SizeBytes{
		"MAX_REQUEST_BODY_SIZE": &envCfg.Server.MaxRequestBodySize,
		"CHUNK_SIZE":            &envCfg.Bridge.ChunkSize,
	}
	for key, dst := range sizes {
		if v := envs[key]; v != "" {
			s, err := parseSize(strings.TrimSpace(v))
			if err != nil {
				bad(key, v, err)
				continue
			}
			*dst = s
		}
	}

	if v := envs["STREAM_REQUEST_BODY"]; v != "" {
		envCfg.Server.StreamRequestBody = parseBool("STREAM_REQUEST_BODY", v)
	}
	if v := envs["RATE_RPS"]; v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envCfg.Server.RateLimit.RPS = f
		} else {
			bad("RATE_RPS", v, err)
		}
	}
	if v := envs["RATE_BURST"]; v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envCfg.Server.RateLimit.Burst = n
		} else {
			bad("RATE_BURST", v, err)
		}
	}

	envCfg.Bridge.URI.Mode = strings.TrimSpace(envs["URI_MODE"])
	envCfg.Bridge.URI.Schema = strings.TrimSpace(envs["URI_SCHEMA"])
	envCfg.Bridge.URI.Host = strings.TrimSpace(envs["URI_HOST"])

	if v := envs["LOG_LEVEL"]; v != "" {
		envCfg.Logging.Level = strings.TrimSpace(v)
	}

	if v := envs["METRICS_ENABLED"]; v != "" {
		envCfg.Metrics.Enabled = parseBool("METRICS_ENABLED", v)
	}
	if v := envs["METRICS_PATH"]; v != "" {
		envCfg.Metrics.Path = strings.TrimSpace(v)
	}

	return envCfg, EnvResult{EnvUsed: envUsed}, errors.Join(errs...)
}

// decides which single source to use (config file or env) and applies the
// flags on top. if --config is set only the config file is used as base;
// otherwise the config file if present; else env.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envRes EnvResult) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	switch {
	case flags.Set["config"]:
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Source = "config"
	case fileExists:
		res.Config = fileCfg
		res.Source = "config"
	}
	if res.Config == nil {
		if envCfg == nil {
			envCfg = &Config{}
		}
		res.Config = envCfg
		res.Source = "env"
	} else if envRes.EnvUsed {
		logger.Info("env_config_ignored", "reason", "config file takes precedence")
	}

	overridden := false
	if flags.Set["addr"] {
		host, port, err := net.SplitHostPort(flags.Addr)
		if err != nil {
			return res, fmt.Errorf("invalid --addr %q: %w", flags.Addr, err)
		}
		res.Config.Server.Address = host
		res.Config.Server.Port = parsePortFromAddr(flags.Addr)
		if port != "" && res.Config.Server.Port == 0 {
			return res, fmt.Errorf("invalid --addr %q: bad port", flags.Addr)
		}
		overridden = true
	}
	if flags.Set["log-level"] {
		res.Config.Logging.Level = flags.LogLevel
		overridden = true
	}
	if overridden {
		res.Source += "+flags"
	}
	res.Addr = res.Config.Addr()
	return res, nil
}

// extracts port integer from host:port string
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
