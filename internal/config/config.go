package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Generation GenerationConfig `yaml:"generation"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SessionIdleTimeout drops a user's in-memory UI state after this long
	// without a request.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the database file when Driver is sqlite.
	Path string `yaml:"path"`
}

// Auth modes select how a request's user is identified.
const (
	AuthModeDev       = "dev"
	AuthModeTailscale = "tailscale"
	AuthModeJWT       = "jwt"
)

type AuthConfig struct {
	Mode string `yaml:"mode"`
	// APIKey guards /metrics when set.
	APIKey    string `yaml:"api_key"`
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type GenerationConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"api_key"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// SlogLevel maps log.level to a slog level; unknown or empty means info.
func (l LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix HYBRID_ and underscore-separated paths:
//
//	HYBRID_SERVER_HOST, HYBRID_SERVER_PORT, HYBRID_SERVER_SESSION_IDLE_TIMEOUT,
//	HYBRID_DB_DRIVER, HYBRID_DB_HOST, HYBRID_DB_PORT, HYBRID_DB_NAME,
//	HYBRID_DB_USER, HYBRID_DB_PASSWORD, HYBRID_DB_SSLMODE, HYBRID_DB_PATH,
//	HYBRID_AUTH_MODE, HYBRID_AUTH_API_KEY, HYBRID_AUTH_JWT_SECRET, HYBRID_AUTH_JWT_ISSUER,
//	HYBRID_TAILSCALE_ENABLED, HYBRID_TAILSCALE_HOSTNAME, HYBRID_TAILSCALE_STATE_DIR,
//	HYBRID_GENERATION_ENDPOINT, HYBRID_GENERATION_API_KEY, HYBRID_GENERATION_FALLBACK_DELAY,
//	HYBRID_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "HYBRID_SERVER_HOST")
	setInt(&cfg.Server.Port, "HYBRID_SERVER_PORT")
	if v := os.Getenv("HYBRID_SERVER_SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.SessionIdleTimeout = d
		}
	}

	setString(&cfg.Database.Driver, "HYBRID_DB_DRIVER")
	setString(&cfg.Database.Host, "HYBRID_DB_HOST")
	setInt(&cfg.Database.Port, "HYBRID_DB_PORT")
	setString(&cfg.Database.Name, "HYBRID_DB_NAME")
	setString(&cfg.Database.User, "HYBRID_DB_USER")
	setString(&cfg.Database.Password, "HYBRID_DB_PASSWORD")
	setString(&cfg.Database.SSLMode, "HYBRID_DB_SSLMODE")
	setString(&cfg.Database.Path, "HYBRID_DB_PATH")

	setString(&cfg.Auth.Mode, "HYBRID_AUTH_MODE")
	setString(&cfg.Auth.APIKey, "HYBRID_AUTH_API_KEY")
	setString(&cfg.Auth.JWTSecret, "HYBRID_AUTH_JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "HYBRID_AUTH_JWT_ISSUER")

	if v := os.Getenv("HYBRID_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	setString(&cfg.Tailscale.Hostname, "HYBRID_TAILSCALE_HOSTNAME")
	setString(&cfg.Tailscale.StateDir, "HYBRID_TAILSCALE_STATE_DIR")

	setString(&cfg.Generation.Endpoint, "HYBRID_GENERATION_ENDPOINT")
	setString(&cfg.Generation.APIKey, "HYBRID_GENERATION_API_KEY")
	if v := os.Getenv("HYBRID_GENERATION_FALLBACK_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Generation.FallbackDelay = d
		}
	}

	setString(&cfg.Log.Level, "HYBRID_LOG_LEVEL")
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthModeDev
	}
	if cfg.Generation.FallbackDelay == 0 {
		cfg.Generation.FallbackDelay = 3 * time.Second
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "hybridathlete"
	}
	if cfg.Server.SessionIdleTimeout == 0 {
		cfg.Server.SessionIdleTimeout = time.Hour
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.SessionIdleTimeout < 0 {
		return fmt.Errorf("server.session_idle_timeout must not be negative")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not one of postgres, sqlite", c.Database.Driver)
	}

	switch c.Auth.Mode {
	case AuthModeDev:
	case AuthModeTailscale:
		if !c.Tailscale.Enabled {
			return fmt.Errorf("auth.mode tailscale requires tailscale.enabled")
		}
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required for jwt mode")
		}
	default:
		return fmt.Errorf("auth.mode %q is not one of dev, tailscale, jwt", c.Auth.Mode)
	}

	if c.Generation.Endpoint == "" {
		return fmt.Errorf("generation.endpoint is required")
	}
	if c.Generation.FallbackDelay < 0 {
		return fmt.Errorf("generation.fallback_delay must not be negative")
	}
	return nil
}
