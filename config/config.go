package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Transport     TransportConfig     `yaml:"transport"`
	Poller        PollerConfig        `yaml:"poller"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Notifier      NotifierConfig      `yaml:"notifier"`
	DefaultRouter DefaultRouterConfig `yaml:"default_router"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	WSAddr          string        `yaml:"ws_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // file, mysql, memory
	Path   string `yaml:"path"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type TransportConfig struct {
	Method    string `yaml:"method"` // ubus, cgi, luci, demo
	UbusLogin bool   `yaml:"ubus_login"`
}

type PollerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

type DashboardConfig struct {
	AutoRefresh         bool          `yaml:"auto_refresh"`
	AutoRefreshInterval time.Duration `yaml:"auto_refresh_interval"`
}

type CredentialsConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

type NotifierConfig struct {
	TelegramAPIBase string `yaml:"telegram_api_base"`
}

// DefaultRouterConfig is registered on first start, before any registry was saved.
type DefaultRouterConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Name      string `yaml:"name"`
	IPAddress string `yaml:"ip_address"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Debug  bool   `yaml:"debug"`
	Output string `yaml:"output"` // stdout, stderr or a file path
	Pretty bool   `yaml:"pretty"`
}

// Defaults returns a Config with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			WSAddr:          ":8081",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "./data",
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Port: "3306",
			User: "root",
			Name: "kendalinet",
		},
		Transport: TransportConfig{
			Method: "cgi",
		},
		Poller: PollerConfig{
			Interval:     30 * time.Second,
			ProbeTimeout: 3 * time.Second,
		},
		Dashboard: DashboardConfig{
			AutoRefresh:         true,
			AutoRefreshInterval: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
			CleanupInterval:   time.Minute,
			StaleAfter:        10 * time.Minute,
		},
		Notifier: NotifierConfig{
			TelegramAPIBase: "https://api.telegram.org",
		},
		DefaultRouter: DefaultRouterConfig{
			Enabled:   true,
			Name:      "Router Utama",
			IPAddress: "192.168.2.1",
			Username:  "root",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// LoadConfig reads path over Defaults (a missing file is not an error) and
// applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	switch c.Transport.Method {
	case "ubus", "cgi", "luci", "demo":
	default:
		return fmt.Errorf("unknown transport method %q", c.Transport.Method)
	}

	switch c.Storage.Driver {
	case "file":
		if c.Storage.Path == "" {
			return errors.New("storage path is required for the file driver")
		}
	case "mysql":
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("database host and name are required for the mysql driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller interval must be positive")
	}
	if c.Poller.ProbeTimeout <= 0 {
		return errors.New("poller probe_timeout must be positive")
	}
	if c.Poller.MaxConcurrent < 0 {
		return errors.New("poller max_concurrent must not be negative")
	}
	if c.Dashboard.AutoRefreshInterval <= 0 {
		return errors.New("dashboard auto_refresh_interval must be positive")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return errors.New("rate_limit requests_per_minute must not be negative")
	}

	return nil
}

// DSN returns the MySQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Addr = getEnv("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.WSAddr = getEnv("WS_SERVER_ADDR", cfg.Server.WSAddr)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Path = getEnv("STORAGE_PATH", cfg.Storage.Path)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASS", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)

	cfg.Transport.Method = getEnv("TRANSPORT_METHOD", cfg.Transport.Method)
	cfg.Transport.UbusLogin = getEnvBool("TRANSPORT_UBUS_LOGIN", cfg.Transport.UbusLogin)

	cfg.Credentials.EncryptionKey = getEnv("CREDENTIALS_KEY", cfg.Credentials.EncryptionKey)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Debug = getEnvBool("DEBUG", cfg.Logging.Debug)
	cfg.Logging.Pretty = getEnvBool("LOG_PRETTY", cfg.Logging.Pretty)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
