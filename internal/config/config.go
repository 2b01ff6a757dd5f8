package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort      = 8080
	DefaultAdminUser     = "admin"
	DefaultTokenTTL      = 168 * time.Hour
	DefaultMaxFrameBytes = 2 << 20
	DefaultLogCapacity   = 500
)

// Config holds the relay configuration parsed from the `server:` section of
// the config file.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all relay settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket endpoint listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is the slog level for operational logging: debug | info |
	// warn | error. Hot-reloadable via Watch. Default info.
	LogLevel string `yaml:"log_level"`

	// Auth configures the token gate.
	Auth AuthConfig `yaml:"auth"`

	// Video controls frame ingest limits.
	Video VideoConfig `yaml:"video"`

	// Logs controls the in-memory log ring.
	Logs LogsConfig `yaml:"logs"`
}

// AuthConfig configures the token gate and the single admin identity.
type AuthConfig struct {
	// Mode is one of: static | signed. Static compares tokens to the shared
	// secret; signed issues expiring HMAC tokens over the same secret.
	// Default static.
	Mode string `yaml:"mode"`

	// SecretEnv is the name of the environment variable holding the shared
	// secret.
	SecretEnv string `yaml:"secret_env"`

	// AdminUser is the single admin username (default "admin").
	AdminUser string `yaml:"admin_user"`

	// AdminPassEnv is the name of the environment variable holding the
	// admin password.
	AdminPassEnv string `yaml:"admin_pass_env"`

	// TokenTTL is the signed-token lifetime (signed mode only, default 168h).
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// Secret returns the shared secret resolved from the environment.
func (a AuthConfig) Secret() string {
	if a.SecretEnv == "" {
		return ""
	}
	return os.Getenv(a.SecretEnv)
}

// AdminPass returns the admin password resolved from the environment.
func (a AuthConfig) AdminPass() string {
	if a.AdminPassEnv == "" {
		return ""
	}
	return os.Getenv(a.AdminPassEnv)
}

// VideoConfig controls frame ingest limits.
type VideoConfig struct {
	// MaxFrameBytes is the per-frame size cap at ingest; larger frames are
	// dropped silently. Default 2 MiB.
	MaxFrameBytes int `yaml:"max_frame_bytes"`
}

// LogsConfig controls the in-memory log ring.
type LogsConfig struct {
	// Capacity is the number of entries the ring retains (default 500).
	Capacity int `yaml:"capacity"`
}

// SlogLevel maps the configured log level name to a slog.Level.
// Unknown names fall back to info.
func (s ServerConfig) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path. Missing fields are filled
// with defaults before validation.
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

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			LogLevel: "info",
			Auth: AuthConfig{
				Mode:      "static",
				AdminUser: DefaultAdminUser,
				TokenTTL:  DefaultTokenTTL,
			},
			Video: VideoConfig{MaxFrameBytes: DefaultMaxFrameBytes},
			Logs:  LogsConfig{Capacity: DefaultLogCapacity},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Auth.Mode {
	case "static", "signed", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want static|signed", s.Auth.Mode)
	}
	if s.Auth.TokenTTL < 0 {
		return fmt.Errorf("server.auth.token_ttl must not be negative")
	}
	if s.Video.MaxFrameBytes <= 0 {
		return fmt.Errorf("server.video.max_frame_bytes must be positive")
	}
	if s.Logs.Capacity <= 0 {
		return fmt.Errorf("server.logs.capacity must be positive")
	}
	return nil
}
