// Package config holds keygate's settings: their defaults, how they are read
// from viper (file, KEYGATE_* environment, legacy variable names) and the
// YAML file layout written by "keygate config init".
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the effective, typed configuration.
type Config struct {
	Keys      KeysConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Redis     RedisConfig
	Cleanup   CleanupConfig
	Auth      AuthConfig
	Server    ServerConfig
	Log       LogConfig
	MCP       MCPConfig
}

type KeysConfig struct {
	TTL             time.Duration
	Length          int
	Secret          string
	RequirePlayerID bool
}

type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

type StoreConfig struct {
	Driver          string
	DSN             string
	DataDir         string
	Timeout         time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the shared rate limiter when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type CleanupConfig struct {
	Interval time.Duration
}

type AuthConfig struct {
	JWTSecret string
	JWTExpiry time.Duration
}

type ServerConfig struct {
	Host            string
	Port            int
	CORSOrigins     []string
	IPRateLimit     int // requests per minute per client IP; 0 disables
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type MCPConfig struct {
	Transport string // "stdio" or "http"
	Addr      string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Keys: KeysConfig{
			TTL:             time.Hour,
			Length:          32,
			RequirePlayerID: true,
		},
		RateLimit: RateLimitConfig{
			Window: time.Hour,
			Max:    5,
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: DefaultDataDir(),
			Timeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Prefix: "keygate:",
		},
		Cleanup: CleanupConfig{
			Interval: 10 * time.Minute,
		},
		Auth: AuthConfig{
			JWTExpiry: time.Hour,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			IPRateLimit:     120,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Addr:      ":8081",
		},
	}
}

// DefaultDataDir returns ~/.keygate, or .keygate when the home directory is
// unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keygate"
	}
	return filepath.Join(home, ".keygate")
}

// legacyEnv maps viper keys to the bare variable names older deployments use.
var legacyEnv = map[string][]string{
	"keys.ttl":          {"KEY_TTL"},
	"keys.length":       {"KEY_LENGTH"},
	"keys.secret":       {"SECRET_KEY"},
	"rate_limit.window": {"RATE_LIMIT_WINDOW"},
	"rate_limit.max":    {"RATE_LIMIT_MAX", "RATE_LIMIT_PER_HWID"},
}

// Setup registers defaults, the KEYGATE env prefix and the legacy variable
// names on v.
func Setup(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("keys.ttl", d.Keys.TTL.String())
	v.SetDefault("keys.length", d.Keys.Length)
	v.SetDefault("keys.secret", "")
	v.SetDefault("keys.require_player_id", d.Keys.RequirePlayerID)
	v.SetDefault("rate_limit.window", d.RateLimit.Window.String())
	v.SetDefault("rate_limit.max", d.RateLimit.Max)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.data_dir", d.Store.DataDir)
	v.SetDefault("store.timeout", d.Store.Timeout.String())
	v.SetDefault("store.max_open_conns", 0)
	v.SetDefault("store.max_idle_conns", 0)
	v.SetDefault("store.conn_max_lifetime", "0s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("cleanup.interval", d.Cleanup.Interval.String())
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiry", d.Auth.JWTExpiry.String())
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.ip_rate_limit", d.Server.IPRateLimit)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("mcp.transport", d.MCP.Transport)
	v.SetDefault("mcp.addr", d.MCP.Addr)

	v.SetEnvPrefix("KEYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := "KEYGATE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		v.BindEnv(append([]string{key, prefixed}, names...)...)
	}
}

// Load reads the effective configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var errs []string
	dur := func(key string) time.Duration {
		d, err := parseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}

	cfg := &Config{
		Keys: KeysConfig{
			TTL:             dur("keys.ttl"),
			Length:          v.GetInt("keys.length"),
			Secret:          v.GetString("keys.secret"),
			RequirePlayerID: v.GetBool("keys.require_player_id"),
		},
		RateLimit: RateLimitConfig{
			Window: dur("rate_limit.window"),
			Max:    v.GetInt("rate_limit.max"),
		},
		Store: StoreConfig{
			Driver:          v.GetString("store.driver"),
			DSN:             v.GetString("store.dsn"),
			DataDir:         v.GetString("store.data_dir"),
			Timeout:         dur("store.timeout"),
			MaxOpenConns:    v.GetInt("store.max_open_conns"),
			MaxIdleConns:    v.GetInt("store.max_idle_conns"),
			ConnMaxLifetime: dur("store.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		Cleanup: CleanupConfig{
			Interval: dur("cleanup.interval"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			JWTExpiry: dur("auth.jwt_expiry"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			CORSOrigins:     v.GetStringSlice("server.cors_origins"),
			IPRateLimit:     v.GetInt("server.ip_rate_limit"),
			ShutdownTimeout: dur("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		MCP: MCPConfig{
			Transport: v.GetString("mcp.transport"),
			Addr:      v.GetString("mcp.addr"),
		},
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []string
	if c.Keys.TTL <= 0 {
		errs = append(errs, "keys.ttl must be positive")
	}
	if c.Keys.Length < 16 || c.Keys.Length > 64 {
		errs = append(errs, fmt.Sprintf("keys.length must be between 16 and 64, got %d", c.Keys.Length))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, "rate_limit.window must be positive")
	}
	if c.RateLimit.Max <= 0 {
		errs = append(errs, "rate_limit.max must be positive")
	}
	if c.Store.Driver == "" {
		errs = append(errs, "store.driver is required")
	}
	if c.Store.Driver != "memory" && c.Store.Driver != "sqlite" && c.Store.DSN == "" {
		errs = append(errs, fmt.Sprintf("store.dsn is required for driver %q", c.Store.Driver))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, "store.timeout must be positive")
	}
	if c.Cleanup.Interval < 0 {
		errs = append(errs, "cleanup.interval must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.IPRateLimit < 0 {
		errs = append(errs, "server.ip_rate_limit must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Sprintf("mcp.transport must be stdio or http, got %q", c.MCP.Transport))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

var bareSeconds = regexp.MustCompile(`^\d+$`)

// parseDuration accepts Go durations ("90m") and bare integers, which are
// read as seconds ("3600").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if bareSeconds.MatchString(s) {
		s += "s"
	}
	return time.ParseDuration(s)
}
