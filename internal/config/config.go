// Package config provides configuration loading for the pace CLI and server.
//
// Database credentials come from the DB_* variables (environment first, then an
// optional .env file). Everything else can be set in config.yaml or through
// PACE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultDriver is used when DB_DRIVER is unset.
const DefaultDriver = "ODBC Driver 17 for SQL Server"

// Config holds the application configuration.
type Config struct {
	// Database is the credential source for the viewed database.
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Server configuration for the HTTP listener.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Session configuration
	Session SessionConfig `mapstructure:"session" yaml:"session"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// DatabaseConfig holds connection parameters for the viewed database.
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver" yaml:"driver"`
	Server         string        `mapstructure:"server" yaml:"server"`
	Database       string        `mapstructure:"database" yaml:"database"`
	Username       string        `mapstructure:"username" yaml:"username"`
	Password       string        `mapstructure:"password" yaml:"password"`
	SSLMode        string        `mapstructure:"sslmode" yaml:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" yaml:"connectTimeout"`
}

// DriverOrDefault returns the configured driver name, falling back to DefaultDriver.
func (d DatabaseConfig) DriverOrDefault() string {
	if strings.TrimSpace(d.Driver) == "" {
		return DefaultDriver
	}
	return d.Driver
}

// Missing returns the names of the required variables that are empty.
// File-based engines only need the database path, so callers pass fileBased.
func (d DatabaseConfig) Missing(fileBased bool) []string {
	var missing []string
	if !fileBased && d.Server == "" {
		missing = append(missing, "DB_SERVER")
	}
	if d.Database == "" {
		missing = append(missing, "DB_DATABASE")
	}
	if !fileBased && d.Username == "" {
		missing = append(missing, "DB_USERNAME")
	}
	if !fileBased && d.Password == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	return missing
}

// Redacted returns a copy with the password masked.
func (d DatabaseConfig) Redacted() DatabaseConfig {
	if d.Password != "" {
		d.Password = "********"
	}
	return d
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout"`
}

// SessionConfig holds session store configuration.
type SessionConfig struct {
	// Backend is one of "memory", "redis" or "sql".
	Backend      string        `mapstructure:"backend" yaml:"backend"`
	CookieName   string        `mapstructure:"cookieName" yaml:"cookieName"`
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SecureCookie bool          `mapstructure:"secureCookie" yaml:"secureCookie"`
	Redis        RedisConfig   `mapstructure:"redis" yaml:"redis"`
	SQL          SQLConfig     `mapstructure:"sql" yaml:"sql"`
}

// RedisConfig configures the redis session backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"password"`
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"keyPrefix" yaml:"keyPrefix"`
}

// SQLConfig configures the sql session backend.
type SQLConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// CacheConfig holds memoization limits.
type CacheConfig struct {
	// Snapshots bounds the number of memoized row snapshots.
	Snapshots int `mapstructure:"snapshots" yaml:"snapshots"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// dbEnv maps config keys to the unprefixed variable names the deployment uses.
var dbEnv = map[string]string{
	"database.driver":   "DB_DRIVER",
	"database.server":   "DB_SERVER",
	"database.database": "DB_DATABASE",
	"database.username": "DB_USERNAME",
	"database.password": "DB_PASSWORD",
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:         DefaultDriver,
			SSLMode:        "disable",
			ConnectTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8501",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			Backend:    "memory",
			CookieName: "pace_session",
			TTL:        12 * time.Hour,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "pace:session:",
			},
			SQL: SQLConfig{
				Driver: "sqlite",
				DSN:    "file:pace_sessions.db",
			},
		},
		Cache: CacheConfig{
			Snapshots: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Options controls where Load looks for input.
type Options struct {
	// ConfigPath is an explicit YAML file. When empty, ./config.yaml and
	// ~/.pace/config.yaml are tried.
	ConfigPath string

	// EnvFile is a dotenv file holding DB_* values. When empty, ./.env is tried.
	EnvFile string
}

// Load loads configuration from file and environment.
func Load(opts Options) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".pace"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range dbEnv {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", name, err)
		}
	}

	if err := loadDotEnv(v, opts.EnvFile); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv reads DB_* values from a dotenv file and installs them as
// defaults, so the process environment and the config file still win.
func loadDotEnv(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error reading env file: %w", err)
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading env file: %w", err)
	}

	for key, name := range dbEnv {
		if envKey := strings.ToLower(name); env.IsSet(envKey) {
			v.SetDefault(key, env.GetString(envKey))
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.server", "")
	v.SetDefault("database.database", "")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.connectTimeout", d.Database.ConnectTimeout)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	v.SetDefault("server.idleTimeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)
	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.cookieName", d.Session.CookieName)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.secureCookie", false)
	v.SetDefault("session.redis.addr", d.Session.Redis.Addr)
	v.SetDefault("session.redis.username", "")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.keyPrefix", d.Session.Redis.KeyPrefix)
	v.SetDefault("session.sql.driver", d.Session.SQL.Driver)
	v.SetDefault("session.sql.dsn", d.Session.SQL.DSN)
	v.SetDefault("cache.snapshots", d.Cache.Snapshots)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}
