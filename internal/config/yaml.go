package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig is the on-disk layout of keygate.yaml. Durations are strings in
// Go syntax ("1h", "90s").
type YAMLConfig struct {
	Keys      KeysYAML      `yaml:"keys"`
	RateLimit RateLimitYAML `yaml:"rate_limit"`
	Store     StoreYAML     `yaml:"store"`
	Redis     RedisYAML     `yaml:"redis"`
	Cleanup   CleanupYAML   `yaml:"cleanup"`
	Auth      AuthYAML      `yaml:"auth"`
	Server    ServerYAML    `yaml:"server"`
	Log       LogYAML       `yaml:"log"`
	MCP       MCPYAML       `yaml:"mcp"`
}

type KeysYAML struct {
	TTL             string `yaml:"ttl"`
	Length          int    `yaml:"length"`
	Secret          string `yaml:"secret"`
	RequirePlayerID bool   `yaml:"require_player_id"`
}

type RateLimitYAML struct {
	Window string `yaml:"window"`
	Max    int    `yaml:"max"`
}

type StoreYAML struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	DataDir         string `yaml:"data_dir"`
	Timeout         string `yaml:"timeout"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type RedisYAML struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type CleanupYAML struct {
	Interval string `yaml:"interval"`
}

type AuthYAML struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

type ServerYAML struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	CORSOrigins     []string `yaml:"cors_origins"`
	IPRateLimit     int      `yaml:"ip_rate_limit"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
}

type LogYAML struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MCPYAML struct {
	Transport string `yaml:"transport"`
	Addr      string `yaml:"addr"`
}

// YAML converts the effective configuration to its file layout. When redact
// is set, secrets are masked.
func (c *Config) YAML(redact bool) *YAMLConfig {
	mask := func(s string) string {
		if redact && s != "" {
			return "********"
		}
		return s
	}
	return &YAMLConfig{
		Keys: KeysYAML{
			TTL:             c.Keys.TTL.String(),
			Length:          c.Keys.Length,
			Secret:          mask(c.Keys.Secret),
			RequirePlayerID: c.Keys.RequirePlayerID,
		},
		RateLimit: RateLimitYAML{
			Window: c.RateLimit.Window.String(),
			Max:    c.RateLimit.Max,
		},
		Store: StoreYAML{
			Driver:          c.Store.Driver,
			DSN:             mask(c.Store.DSN),
			DataDir:         c.Store.DataDir,
			Timeout:         c.Store.Timeout.String(),
			MaxOpenConns:    c.Store.MaxOpenConns,
			MaxIdleConns:    c.Store.MaxIdleConns,
			ConnMaxLifetime: c.Store.ConnMaxLifetime.String(),
		},
		Redis: RedisYAML{
			Addr:     c.Redis.Addr,
			Password: mask(c.Redis.Password),
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		},
		Cleanup: CleanupYAML{
			Interval: c.Cleanup.Interval.String(),
		},
		Auth: AuthYAML{
			JWTSecret: mask(c.Auth.JWTSecret),
			JWTExpiry: c.Auth.JWTExpiry.String(),
		},
		Server: ServerYAML{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			CORSOrigins:     c.Server.CORSOrigins,
			IPRateLimit:     c.Server.IPRateLimit,
			ShutdownTimeout: c.Server.ShutdownTimeout.String(),
		},
		Log: LogYAML{
			Level:  c.Log.Level,
			Format: c.Log.Format,
		},
		MCP: MCPYAML{
			Transport: c.MCP.Transport,
			Addr:      c.MCP.Addr,
		},
	}
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	var cfg YAMLConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// DefaultYAMLConfig returns the defaults in file layout.
func DefaultYAMLConfig() *YAMLConfig {
	d := Defaults()
	return d.YAML(false)
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
