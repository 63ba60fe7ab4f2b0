// Package config provides Viper-based configuration loading for the chess server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the TCP listener settings.
type ServerConfig struct {
	// Host is the bind address for the TCP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// MaxConnections is the ceiling on concurrently connected clients.
	// Connections beyond the ceiling are rejected at accept time.
	MaxConnections int `mapstructure:"max_connections"`
	// ReadTimeout is the per-read idle timeout. Expiry produces a
	// timeout_warning message, not a disconnect.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// InviteTTL is how long a game invite stays acceptable.
	InviteTTL time.Duration `mapstructure:"invite_ttl"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// HeartbeatConfig holds the per-session liveness probe settings.
type HeartbeatConfig struct {
	// Interval is how often each session's heartbeat loop ticks.
	Interval time.Duration `mapstructure:"interval"`
	// StaleCeiling is the maximum allowed time since last activity
	// before a session is forcibly closed.
	StaleCeiling time.Duration `mapstructure:"stale_ceiling"`
}

// ClientConfig holds settings for the reconnecting client.
type ClientConfig struct {
	// Host is the server address to connect to.
	Host string `mapstructure:"host"`
	// Port is the server TCP port.
	Port int `mapstructure:"port"`
	// ReconnectAttempts bounds connection retries before surfacing failure.
	ReconnectAttempts int `mapstructure:"reconnect_attempts"`
	// ReconnectDelay is the fixed pause between connection attempts.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	// HeartbeatInterval is how often the client sends a ping.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// Addr returns the "host:port" server address.
func (c ClientConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Client    ClientConfig    `mapstructure:"client"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateHeartbeat(c.Heartbeat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateClient(c.Client); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.MaxConnections < 1 {
		errs = append(errs, fmt.Sprintf("server.max_connections must be >= 1, got %d", s.MaxConnections))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.InviteTTL <= 0 {
		errs = append(errs, fmt.Sprintf("server.invite_ttl must be positive, got %s", s.InviteTTL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateHeartbeat(h HeartbeatConfig) error {
	var errs []string
	if h.Interval <= 0 {
		errs = append(errs, fmt.Sprintf("heartbeat.interval must be positive, got %s", h.Interval))
	}
	if h.StaleCeiling <= 0 {
		errs = append(errs, fmt.Sprintf("heartbeat.stale_ceiling must be positive, got %s", h.StaleCeiling))
	}
	if h.StaleCeiling > 0 && h.Interval > 0 && h.StaleCeiling < h.Interval {
		errs = append(errs, "heartbeat.stale_ceiling must not be shorter than heartbeat.interval")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateClient(c ClientConfig) error {
	var errs []string
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("client.port must be 1-65535, got %d", c.Port))
	}
	if c.ReconnectAttempts < 1 {
		errs = append(errs, fmt.Sprintf("client.reconnect_attempts must be >= 1, got %d", c.ReconnectAttempts))
	}
	if c.ReconnectDelay < 0 {
		errs = append(errs, "client.reconnect_delay must not be negative")
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Sprintf("client.heartbeat_interval must be positive, got %s", c.HeartbeatInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with XADREZ_ prefix
	v.SetEnvPrefix("XADREZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_connections", 100)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.invite_ttl", "5m")

	v.SetDefault("heartbeat.interval", "30s")
	v.SetDefault("heartbeat.stale_ceiling", "2m")

	v.SetDefault("client.host", "127.0.0.1")
	v.SetDefault("client.port", 8080)
	v.SetDefault("client.reconnect_attempts", 3)
	v.SetDefault("client.reconnect_delay", "5s")
	v.SetDefault("client.heartbeat_interval", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "xadrez")
	v.SetDefault("database.password", "xadrez")
	v.SetDefault("database.name", "xadrez")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
