// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"recruit-gateway/internal/route"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/recruit-gateway/config.toml",
	"configs/config.toml",
}

// DefaultUpstreamURL is used when neither the config file nor BACKEND_URL set one.
const DefaultUpstreamURL = "http://localhost:8000"

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	UpstreamURL string `kong:"name='upstream-url',help='Backend API base URL (overrides config).',env='BACKEND_URL'"`
	LogLevel    string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Tracing  TracingConfig  `toml:"tracing"`

	// Routes replaces the built-in route table when non-empty.
	Routes []route.Spec `toml:"routes"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string          `toml:"host"`
	Port        int             `toml:"port"` // 0 means "use default" (3000); TOML cannot distinguish 0 from unset
	BodyLimit   string          `toml:"body_limit"`
	CORSOrigins []string        `toml:"cors_origins"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`

	BodyMaxBytes int64 `toml:"-"` // parsed from BodyLimit
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	BaseURL         string            `toml:"base_url"`
	TimeoutSeconds  int               `toml:"timeout_seconds"`
	IdleConnections int               `toml:"idle_connections"`
	Overrides       map[string]string `toml:"overrides"` // route name → base URL
}

// GatewayConfig holds forwarding settings shared by all routes.
type GatewayConfig struct {
	Prefix          string `toml:"prefix"`
	CookieName      string `toml:"cookie_name"`
	MultipartMemory string `toml:"multipart_memory"`

	MultipartMaxMemory int64 `toml:"-"` // parsed from MultipartMemory
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// TracingConfig holds OpenTelemetry trace export settings.
type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint"` // OTLP/gRPC host:port
	SampleRatio *float64 `toml:"sample_ratio"` // nil means 1; 0 disables sampling
}

// Ratio returns the configured sampling ratio, 1 when unset.
func (t TracingConfig) Ratio() float64 {
	if t.SampleRatio == nil {
		return 1
	}
	return *t.SampleRatio
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped and existing variables win.
// It must run before Kong parses flags so env-backed flags see the values.
func LoadDotEnv(paths ...string) error {
	var found []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil
	}
	if err := godotenv.Load(found...); err != nil {
		return fmt.Errorf("config: load env file: %w", err)
	}
	return nil
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/recruit-gateway/config.toml then configs/config.toml. Without any
// config file the defaults apply.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.UpstreamURL != "" {
		c.Upstream.BaseURL = cli.UpstreamURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	// Upstream URL: must be an absolute http(s) URL.
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use http or https; got %q", c.Upstream.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url has no host; got %q", c.Upstream.BaseURL)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}

	// Sizes.
	size, err := units.RAMInBytes(c.Server.BodyLimit)
	if err != nil || size <= 0 {
		return fmt.Errorf("server.body_limit must be a positive size like \"10MB\"; got %q", c.Server.BodyLimit)
	}
	c.Server.BodyMaxBytes = size
	size, err = units.RAMInBytes(c.Gateway.MultipartMemory)
	if err != nil || size <= 0 {
		return fmt.Errorf("gateway.multipart_memory must be a positive size like \"32MB\"; got %q", c.Gateway.MultipartMemory)
	}
	c.Gateway.MultipartMaxMemory = size

	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			continue
		}
		if o, err := url.Parse(origin); err != nil || o.Scheme == "" || o.Host == "" {
			return fmt.Errorf("server.cors_origins entry %q is not an origin URL", origin)
		}
	}

	// Gateway fields.
	if c.Gateway.Prefix[0] != '/' {
		return fmt.Errorf("gateway.prefix must start with '/'; got %q", c.Gateway.Prefix)
	}
	c.Gateway.Prefix = strings.TrimSuffix(c.Gateway.Prefix, "/")
	if strings.ContainsAny(c.Gateway.CookieName, " ;=,\t") {
		return fmt.Errorf("gateway.cookie_name contains invalid characters; got %q", c.Gateway.CookieName)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range c.reservedPaths() {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	if r := c.Tracing.Ratio(); r < 0 || r > 1 {
		return fmt.Errorf("tracing.sample_ratio must be within [0, 1]; got %v", r)
	}

	return nil
}

// reservedPaths are the routes the gateway always serves itself.
func (c *Config) reservedPaths() []string {
	paths := []string{"/healthz", "/gateway/status"}
	if c.Gateway.Prefix != "" {
		paths = append(paths, c.Gateway.Prefix)
	}
	return paths
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, TimeoutSeconds, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Setting port=0 in
// the config file therefore results in the default port (3000).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "10MB"
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamURL
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 60
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Gateway.Prefix == "" {
		c.Gateway.Prefix = "/api"
	}
	if c.Gateway.CookieName == "" {
		c.Gateway.CookieName = "auth_token"
	}
	if c.Gateway.MultipartMemory == "" {
		c.Gateway.MultipartMemory = "32MB"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4317"
	}
}

// RouteTable builds the validated route table: the [[routes]] section when
// present, the built-in table otherwise, with [upstream.overrides] applied.
func (c *Config) RouteTable() (*route.Table, error) {
	specs := c.Routes
	if len(specs) == 0 {
		specs = route.Default()
	}
	t, err := route.NewTable(specs, c.Upstream.Overrides)
	if err != nil {
		return nil, fmt.Errorf("config: routes: %w", err)
	}
	return t, nil
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FilePath returns the config file in use, or "" when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
