package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"recruit-gateway/internal/route"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

// writeConfig writes data to a config.toml in a fresh temp dir.
func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
body_limit = "5MB"
cors_origins = ["http://localhost:5173"]

[upstream]
base_url = "http://backend:8000"
timeout_seconds = 15
idle_connections = 50

[gateway]
prefix = "/bff/"
cookie_name = "session_token"
multipart_memory = "8MB"

[log]
level = "debug"
format = "text"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Server.BodyMaxBytes != 5*1024*1024 {
		t.Errorf("Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 5*1024*1024)
	}
	if cfg.Upstream.BaseURL != "http://backend:8000" {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, "http://backend:8000")
	}
	if cfg.Upstream.TimeoutSeconds != 15 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 15)
	}
	if cfg.Gateway.Prefix != "/bff" {
		t.Errorf("Gateway.Prefix = %q, want %q", cfg.Gateway.Prefix, "/bff")
	}
	if cfg.Gateway.CookieName != "session_token" {
		t.Errorf("Gateway.CookieName = %q, want %q", cfg.Gateway.CookieName, "session_token")
	}
	if cfg.Gateway.MultipartMaxMemory != 8*1024*1024 {
		t.Errorf("Gateway.MultipartMaxMemory = %d, want %d", cfg.Gateway.MultipartMaxMemory, 8*1024*1024)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}
	if cfg.FilePath() != path {
		t.Errorf("FilePath() = %q, want %q", cfg.FilePath(), path)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "verbose"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for invalid log level, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("default Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
	if cfg.Server.BodyMaxBytes != 10*1024*1024 {
		t.Errorf("default Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 10*1024*1024)
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamURL {
		t.Errorf("default Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultUpstreamURL)
	}
	if cfg.Upstream.TimeoutSeconds != 60 {
		t.Errorf("default Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 60)
	}
	if cfg.Gateway.Prefix != "/api" {
		t.Errorf("default Gateway.Prefix = %q, want %q", cfg.Gateway.Prefix, "/api")
	}
	if cfg.Gateway.CookieName != "auth_token" {
		t.Errorf("default Gateway.CookieName = %q, want %q", cfg.Gateway.CookieName, "auth_token")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("default Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if got := cfg.Tracing.Ratio(); got != 1 {
		t.Errorf("default Tracing.Ratio() = %v, want 1", got)
	}
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(&CLI{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FilePath() != "" {
		t.Errorf("FilePath() = %q, want empty", cfg.FilePath())
	}
	if cfg.Upstream.BaseURL != DefaultUpstreamURL {
		t.Errorf("Upstream.BaseURL = %q, want %q", cfg.Upstream.BaseURL, DefaultUpstreamURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(cliWithPath("/nonexistent/config.toml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "0.0.0.0"
port = 8000

[upstream]
base_url = "http://toml-backend:8000"

[log]
level = "info"
`)

	cli := &CLI{
		Config:      path,
		Host:        "127.0.0.1",
		Port:        3001,
		UpstreamURL: "https://api.example.com",
		LogLevel:    "debug",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q (CLI override)", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want %d (CLI override)", cfg.Server.Port, 3001)
	}
	if cfg.Upstream.BaseURL != "https://api.example.com" {
		t.Errorf("Upstream.BaseURL = %q, want %q (CLI override)", cfg.Upstream.BaseURL, "https://api.example.com")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (CLI override)", cfg.Log.Level, "debug")
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"ftp upstream", "[upstream]\nbase_url = \"ftp://backend\"\n", "http or https"},
		{"upstream without host", "[upstream]\nbase_url = \"http://\"\n", "no host"},
		{"negative port", "[server]\nport = -1\n", "server.port"},
		{"port too large", "[server]\nport = 70000\n", "server.port"},
		{"negative timeout", "[upstream]\ntimeout_seconds = -5\n", "timeout_seconds"},
		{"negative idle connections", "[upstream]\nidle_connections = -1\n", "idle_connections"},
		{"bad body limit", "[server]\nbody_limit = \"lots\"\n", "body_limit"},
		{"bad multipart memory", "[gateway]\nmultipart_memory = \"-1MB\"\n", "multipart_memory"},
		{"relative prefix", "[gateway]\nprefix = \"api\"\n", "gateway.prefix"},
		{"cookie name with separator", "[gateway]\ncookie_name = \"a;b\"\n", "cookie_name"},
		{"bad cors origin", "[server]\ncors_origins = [\"localhost\"]\n", "cors_origins"},
		{"bad log format", "[log]\nformat = \"xml\"\n", "log.format"},
		{"sample ratio out of range", "[tracing]\nsample_ratio = 1.5\n", "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(cliWithPath(writeConfig(t, tt.data)))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_RateLimitConfig_Enabled(t *testing.T) {
	path := writeConfig(t, `
[server.rate_limit]
enabled = true
requests_per_second = 50.0
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Server.RateLimit.Enabled {
		t.Error("expected RateLimit.Enabled = true")
	}
	if cfg.Server.RateLimit.RequestsPerSecond != 50.0 {
		t.Errorf("RateLimit.RequestsPerSecond = %v, want 50.0", cfg.Server.RateLimit.RequestsPerSecond)
	}
}

func TestLoad_RateLimitConfig_BadValue(t *testing.T) {
	path := writeConfig(t, `
[server.rate_limit]
enabled = true
requests_per_second = 0
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for rate limit enabled with requests_per_second=0, got nil")
	}
	if !strings.Contains(err.Error(), "requests_per_second") {
		t.Errorf("error = %q, want mention of requests_per_second", err)
	}
}

func TestLoad_SampleRatioZeroKept(t *testing.T) {
	path := writeConfig(t, `
[tracing]
enabled = true
sample_ratio = 0
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Tracing.Ratio(); got != 0 {
		t.Errorf("Tracing.Ratio() = %v, want 0", got)
	}
}

func TestLoad_SampleRatioOutOfRange(t *testing.T) {
	path := writeConfig(t, `
[tracing]
sample_ratio = 1.5
`)

	_, err := Load(cliWithPath(path))
	if err == nil || !strings.Contains(err.Error(), "sample_ratio") {
		t.Fatalf("Load() error = %v, want sample_ratio error", err)
	}
}

func TestLoad_MetricsPathNoLeadingSlash(t *testing.T) {
	path := writeConfig(t, `
[metrics]
enabled = true
path = "metrics"
`)

	_, err := Load(cliWithPath(path))
	if err == nil {
		t.Fatal("Load() expected error for metrics.path without leading slash, got nil")
	}
	if !strings.Contains(err.Error(), "metrics.path") {
		t.Errorf("error = %q, want mention of metrics.path", err)
	}
}

func TestLoad_MetricsPathConflictsWithRoute(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"api exact", "/api"},
		{"api sub", "/api/metrics"},
		{"healthz", "/healthz"},
		{"gateway/status", "/gateway/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := writeConfig(t, `
[metrics]
enabled = true
path = "`+tt.path+`"
`)

			_, err := Load(cliWithPath(cfgPath))
			if err == nil {
				t.Fatalf("Load() expected error for metrics.path=%q conflicting with route, got nil", tt.path)
			}
			if !strings.Contains(err.Error(), "conflicts") {
				t.Errorf("error = %q, want mention of conflict", err)
			}
		})
	}
}

func TestLoad_MetricsDisabledSkipsPathValidation(t *testing.T) {
	path := writeConfig(t, `
[metrics]
enabled = false
path = "bad-no-slash"
`)

	if _, err := Load(cliWithPath(path)); err != nil {
		t.Fatalf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestLoad_RoutesSection(t *testing.T) {
	path := writeConfig(t, `
[upstream.overrides]
candidates-get = "http://127.0.0.1:8001"

[[routes]]
name = "candidates-get"
method = "GET"
path = "/candidates/{id}"
cookie_auth = true

[[routes]]
name = "candidates-create"
method = "POST"
path = "/candidates"
body = "multipart"

[[routes.derive]]
from = "experience"
to = "experience_years"
kind = "int"
default = "0"

[[routes]]
name = "jobs-list"
method = "GET"
path = "/job-descriptions"
query = ["skip", "limit"]

[routes.flatten]
source = "company.name"
target = "company_name"
`)

	cfg, err := Load(cliWithPath(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	table, err := cfg.RouteTable()
	if err != nil {
		t.Fatalf("RouteTable() error = %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}

	get, _ := table.Lookup("candidates-get")
	if get.Upstream != "http://127.0.0.1:8001" {
		t.Errorf("candidates-get Upstream = %q, want override", get.Upstream)
	}
	if !get.CookieAuth {
		t.Error("candidates-get CookieAuth = false, want true")
	}

	create, _ := table.Lookup("candidates-create")
	if create.Kind() != route.BodyMultipart {
		t.Errorf("candidates-create Kind() = %q, want %q", create.Kind(), route.BodyMultipart)
	}
	if len(create.Derive) != 1 || create.Derive[0].Kind != route.DeriveInt {
		t.Errorf("candidates-create Derive = %+v, want one int derivation", create.Derive)
	}

	list, _ := table.Lookup("jobs-list")
	if list.Flatten == nil || list.Flatten.Target != "company_name" {
		t.Errorf("jobs-list Flatten = %+v, want target company_name", list.Flatten)
	}
}

func TestRouteTable_DefaultsWhenNoRoutes(t *testing.T) {
	cfg, err := Load(cliWithPath(writeConfig(t, "")))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	table, err := cfg.RouteTable()
	if err != nil {
		t.Fatalf("RouteTable() error = %v", err)
	}
	if table.Len() != len(route.Default()) {
		t.Errorf("Len() = %d, want %d", table.Len(), len(route.Default()))
	}
}

func TestRouteTable_InvalidOverride(t *testing.T) {
	cfg, err := Load(cliWithPath(writeConfig(t, "[upstream.overrides]\nnope = \"http://127.0.0.1:9\"\n")))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, err := cfg.RouteTable(); err == nil {
		t.Fatal("RouteTable() expected error for unknown route override, got nil")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("RECRUIT_GATEWAY_TEST_URL=http://from-dotenv:8000\nRECRUIT_GATEWAY_TEST_KEEP=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RECRUIT_GATEWAY_TEST_KEEP", "process")
	t.Setenv("RECRUIT_GATEWAY_TEST_URL", "")
	os.Unsetenv("RECRUIT_GATEWAY_TEST_URL")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("RECRUIT_GATEWAY_TEST_URL"); got != "http://from-dotenv:8000" {
		t.Errorf("RECRUIT_GATEWAY_TEST_URL = %q, want value from .env", got)
	}
	if got := os.Getenv("RECRUIT_GATEWAY_TEST_KEEP"); got != "process" {
		t.Errorf("RECRUIT_GATEWAY_TEST_KEEP = %q, want existing process value", got)
	}
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	if err := LoadDotEnv("", "/nonexistent/.env"); err != nil {
		t.Errorf("LoadDotEnv() error = %v, want nil for missing files", err)
	}
}

func TestWarnPermissions_Loose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "readable by group/others") {
		t.Errorf("expected permission warning, got: %q", buf.String())
	}
}

func TestWarnPermissions_Strict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning for 0600 file, got: %q", buf.String())
	}
}

func TestFindConfigInPaths_Priority(t *testing.T) {
	path1 := writeConfig(t, "")
	path2 := writeConfig(t, "")

	if got := findConfigInPaths([]string{"/nonexistent/a.toml", path1, path2}); got != path1 {
		t.Errorf("findConfigInPaths() = %q, want first match %q", got, path1)
	}
	if got := findConfigInPaths([]string{"/nonexistent/a.toml"}); got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 3000}
	want := "127.0.0.1:3000"
	if got := sc.Addr(); got != want {
		t.Errorf("Addr() = %q, want %q", got, want)
	}
}
