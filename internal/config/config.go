package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort       = 8080
	DefaultCatalogPath    = "catalog.yaml"
	DefaultGrafanaURL     = "http://localhost:3000/api"
	DefaultTimeoutSeconds = 10
	DefaultRateLimit      = 10.0
	DefaultRateBurst      = 5
	DefaultInfluxBucket   = "hkd"
	DefaultDatasource     = "InfluxDB"
)

// Config is the top-level hkd-server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Catalog CatalogConfig `yaml:"catalog"`
	Grafana GrafanaConfig `yaml:"grafana"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`
}

// CatalogConfig locates the catalog snapshot file.
type CatalogConfig struct {
	// Path is the YAML catalog file loaded at startup (default catalog.yaml).
	Path string `yaml:"path"`

	// Watch enables fsnotify monitoring of Path. Every write reloads the
	// catalog and triggers a provisioning pass.
	Watch bool `yaml:"watch"`
}

// GrafanaConfig holds the connection to the Grafana HTTP API.
type GrafanaConfig struct {
	// URL is the API base, including the /api prefix
	// (default http://localhost:3000/api).
	URL string `yaml:"url"`

	// Auth selects how outgoing requests authenticate.
	Auth GrafanaAuth `yaml:"auth"`

	// DatasourceUID is the UID of the InfluxDB datasource alert queries and
	// panels read from. DatasourceName is used for display when UID is set.
	DatasourceUID  string `yaml:"datasource_uid"`
	DatasourceName string `yaml:"datasource_name"`

	// InfluxBucket is the bucket flux queries read from (default hkd).
	InfluxBucket string `yaml:"influx_bucket"`

	// TimeoutSeconds is the per-request HTTP timeout (default 10).
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RateLimit caps outgoing requests per second, RateBurst the burst size.
	// Grafana's provisioning endpoints are not built for bulk traffic.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// GrafanaAuth names the environment variables holding Grafana credentials.
// Basic auth (username + password) and a bearer token are mutually
// exclusive; when both are fully set, basic auth wins.
type GrafanaAuth struct {
	// UsernameEnv / PasswordEnv hold the basic-auth pair.
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`

	// TokenEnv holds a service-account bearer token.
	TokenEnv string `yaml:"token_env"`
}

// Username returns the basic-auth username resolved from the environment.
func (a GrafanaAuth) Username() string {
	if a.UsernameEnv == "" {
		return ""
	}
	return os.Getenv(a.UsernameEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a GrafanaAuth) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// Token returns the bearer token resolved from the environment.
func (a GrafanaAuth) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Mode returns the effective authentication mode: "basic", "bearer" or
// "none". A half-set basic pair does not count as basic.
func (a GrafanaAuth) Mode() string {
	user, pass := a.Username(), a.Password()
	if user != "" && pass != "" {
		return "basic"
	}
	if a.Token() != "" {
		return "bearer"
	}
	return "none"
}

// halfBasic reports whether exactly one of the basic-auth pair is set.
func (a GrafanaAuth) halfBasic() bool {
	return (a.Username() != "") != (a.Password() != "")
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation. A half-set basic-auth pair is logged as
// a warning and ignored, matching the remote service's optional auth.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.Grafana.Auth.halfBasic() {
		slog.Warn("config: both username and password must be set to use basic auth — falling back",
			"mode", cfg.Grafana.Auth.Mode())
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
		},
		Catalog: CatalogConfig{
			Path: DefaultCatalogPath,
		},
		Grafana: GrafanaConfig{
			URL:            DefaultGrafanaURL,
			DatasourceName: DefaultDatasource,
			InfluxBucket:   DefaultInfluxBucket,
			TimeoutSeconds: DefaultTimeoutSeconds,
			RateLimit:      DefaultRateLimit,
			RateBurst:      DefaultRateBurst,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	if cfg.Catalog.Path == "" {
		return fmt.Errorf("catalog.path must not be empty")
	}
	if cfg.Grafana.URL == "" {
		return fmt.Errorf("grafana.url must not be empty")
	}
	if cfg.Grafana.TimeoutSeconds <= 0 {
		return fmt.Errorf("grafana.timeout_seconds must be positive")
	}
	if cfg.Grafana.RateLimit <= 0 {
		return fmt.Errorf("grafana.rate_limit must be positive")
	}
	if cfg.Grafana.RateBurst <= 0 {
		return fmt.Errorf("grafana.rate_burst must be positive")
	}
	return nil
}
