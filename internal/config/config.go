// Package config loads gateway configuration from defaults, an optional
// YAML file and MCP_GATEWAY_* environment variables, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML scalars like "30s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts either a duration string or a bare integer of
// nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value at line %d", value.Line)
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML emits the duration in string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config represents the gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// SessionConfig holds stream and lifecycle settings.
type SessionConfig struct {
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	MaxAge            Duration `yaml:"max_age"`
	JanitorInterval   Duration `yaml:"janitor_interval"`
}

// StorageConfig holds the memory store settings.
type StorageConfig struct {
	// SQLitePath is the database file; ":memory:" keeps everything
	// in-process.
	SQLitePath string `yaml:"sqlite_path"`
}

// RateLimitConfig holds request limiting settings. An empty RedisAddr keeps
// the limiter in-process.
type RateLimitConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int      `yaml:"requests"`
	Window    Duration `yaml:"window"`
	RedisAddr string   `yaml:"redis_addr"`
	RedisDB   int      `yaml:"redis_db"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Session: SessionConfig{
			HeartbeatInterval: Duration(30 * time.Second),
			MaxAge:            Duration(30 * time.Minute),
			JanitorInterval:   Duration(time.Minute),
		},
		Storage: StorageConfig{
			SQLitePath: ":memory:",
		},
		RateLimit: RateLimitConfig{
			Enabled:  false,
			Requests: 100,
			Window:   Duration(time.Minute),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// MCP_GATEWAY_CONFIG_FILE (if set), then environment overrides. A .env file
// in the working directory is honored when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	cfg := DefaultConfig()

	if path := os.Getenv("MCP_GATEWAY_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-provided
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	setString("MCP_GATEWAY_HOST", &c.Server.Host)
	setInt("MCP_GATEWAY_PORT", &c.Server.Port)
	setDuration("MCP_GATEWAY_READ_TIMEOUT", &c.Server.ReadTimeout)
	setDuration("MCP_GATEWAY_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	if origins := os.Getenv("MCP_GATEWAY_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitAndTrim(origins)
	}

	setDuration("MCP_GATEWAY_HEARTBEAT_INTERVAL", &c.Session.HeartbeatInterval)
	setDuration("MCP_GATEWAY_SESSION_MAX_AGE", &c.Session.MaxAge)
	setDuration("MCP_GATEWAY_JANITOR_INTERVAL", &c.Session.JanitorInterval)

	setString("MCP_GATEWAY_SQLITE_PATH", &c.Storage.SQLitePath)

	setBool("MCP_GATEWAY_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	setInt("MCP_GATEWAY_RATE_LIMIT_REQUESTS", &c.RateLimit.Requests)
	setDuration("MCP_GATEWAY_RATE_LIMIT_WINDOW", &c.RateLimit.Window)
	setString("MCP_GATEWAY_REDIS_ADDR", &c.RateLimit.RedisAddr)
	setInt("MCP_GATEWAY_REDIS_DB", &c.RateLimit.RedisDB)

	setString("MCP_GATEWAY_LOG_LEVEL", &c.Logging.Level)
	setString("MCP_GATEWAY_LOG_FORMAT", &c.Logging.Format)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Session.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", c.Session.HeartbeatInterval)
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("session max age must be positive, got %v", c.Session.MaxAge)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite path must not be empty")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests < 1 {
			return fmt.Errorf("rate limit requests must be at least 1, got %d", c.RateLimit.Requests)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive, got %v", c.RateLimit.Window)
		}
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
