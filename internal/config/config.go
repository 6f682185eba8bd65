// Package config loads gateway configuration from the environment, with an
// optional YAML file underneath for local development. Validation is
// fail-fast: a misconfigured gateway refuses to start.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	CORS      CORSConfig      `koanf:"cors"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	Upload    UploadConfig    `koanf:"upload"`
	Identity  IdentityConfig  `koanf:"identity"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type UpstreamConfig struct {
	// BaseURL is required; the gateway is a pure forwarder and has nothing
	// to do without it.
	BaseURL string `koanf:"base_url"`

	// Timeout bounds read-path upstream calls. UploadTimeout is longer,
	// reflecting expected payload transfer time.
	Timeout       time.Duration `koanf:"timeout"`
	UploadTimeout time.Duration `koanf:"upload_timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// ClassLimit is the fixed-window budget for one endpoint class.
type ClassLimit struct {
	Window time.Duration `koanf:"window"`
	Max    int           `koanf:"max"`
}

type RateLimitConfig struct {
	Upload  ClassLimit `koanf:"upload"`
	Results ClassLimit `koanf:"results"`
	Auth    ClassLimit `koanf:"auth"`
	Default ClassLimit `koanf:"default"`
}

type UploadConfig struct {
	// MaxSize is the per-file byte ceiling; MaxBatch caps files per request.
	MaxSize  int64 `koanf:"max_size"`
	MaxBatch int   `koanf:"max_batch"`
}

type IdentityConfig struct {
	// JWKSURL points at the identity provider's key set. Empty disables
	// authenticated routes (useful for local development only).
	JWKSURL  string `koanf:"jwks_url"`
	Issuer   string `koanf:"issuer"`
	Audience string `koanf:"audience"`
}

type TelemetryConfig struct {
	// Enabled turns the trace exporter on. Off is safe: spans are simply
	// never recorded.
	Enabled bool `koanf:"enabled"`
}

const envPrefix = "XGW_"

// Load reads configuration: defaults, then the optional YAML file, then
// environment variables (which win). configFile may be empty.
func Load(configFile string) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		_ = k.Set(key, val)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var defaults = map[string]any{
	"server.port":              8080,
	"server.shutdown_timeout":  "30s",
	"upstream.timeout":         "15s",
	"upstream.upload_timeout":  "60s",
	"ratelimit.upload.window":  "1h",
	"ratelimit.upload.max":     10,
	"ratelimit.results.window": "1m",
	"ratelimit.results.max":    60,
	"ratelimit.auth.window":    "1m",
	"ratelimit.auth.max":       20,
	"ratelimit.default.window": "1m",
	"ratelimit.default.max":    100,
	"upload.max_size":          50 * 1024 * 1024,
	"upload.max_batch":         5,
	"telemetry.enabled":        true,
}

// Validate checks the invariants the pipeline depends on. It returns the
// first violation found.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q is not an absolute URL", c.Upstream.BaseURL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Upstream.Timeout <= 0 || c.Upstream.UploadTimeout <= 0 {
		return fmt.Errorf("upstream timeouts must be positive")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	if c.Upload.MaxBatch <= 0 {
		return fmt.Errorf("upload.max_batch must be positive")
	}
	for name, cl := range map[string]ClassLimit{
		"upload":  c.RateLimit.Upload,
		"results": c.RateLimit.Results,
		"auth":    c.RateLimit.Auth,
		"default": c.RateLimit.Default,
	} {
		if cl.Window <= 0 || cl.Max <= 0 {
			return fmt.Errorf("ratelimit.%s: window and max must be positive", name)
		}
	}
	for _, origin := range c.CORS.AllowedOrigins {
		ou, err := url.Parse(origin)
		if err != nil || ou.Scheme == "" || ou.Host == "" {
			return fmt.Errorf("cors.allowed_origins entry %q is not an origin", origin)
		}
	}
	return nil
}
