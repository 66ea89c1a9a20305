// Package config loads the server configuration from defaults, an optional
// YAML file, an optional .env file and the environment, in increasing order
// of priority.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Redis    RedisConfig    `koanf:"redis"`
	Static   StaticConfig   `koanf:"static"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

type ServerConfig struct {
	Port        uint16 `koanf:"port"`
	LogLevel    string `koanf:"log_level"`
	Environment string `koanf:"environment"`
	AccessLog   bool   `koanf:"access_log"`
}

type SecurityConfig struct {
	SecretKey       string        `koanf:"secret_key"`
	LoginRateLimit  int           `koanf:"login_rate_limit"`
	LoginRateWindow time.Duration `koanf:"login_rate_window"`
}

type UpstreamConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StaticConfig struct {
	Dir string `koanf:"dir"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			LogLevel:    "info",
			Environment: "development",
			AccessLog:   true,
		},
		Security: SecurityConfig{
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
		},
		Upstream: UpstreamConfig{
			BaseURL: "https://api.angelcam.com",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			DB:   1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

var envMappings = map[string]string{
	"port":               "server.port",
	"log_level":          "server.log_level",
	"app_env":            "server.environment",
	"access_log":         "server.access_log",
	"secret_key":         "security.secret_key",
	"login_rate_limit":   "security.login_rate_limit",
	"login_rate_window":  "security.login_rate_window",
	"angel_cam_base_url": "upstream.base_url",
	"upstream_timeout":   "upstream.timeout",
	"rate_limit_enabled": "redis.enabled",
	"redis_host":         "redis.host",
	"redis_port":         "redis.port",
	"redis_password":     "redis.password",
	"redis_db":           "redis.db",
	"static_dir":         "static.dir",
	"metrics_enabled":    "metrics.enabled",
}

// envTransformFunc maps known environment variables to config paths and drops
// everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load builds the configuration and validates it. A missing .env file is not
// an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func (c *Config) Validate() error {
	if c.Security.SecretKey == "" {
		return errors.New("SECRET_KEY is required")
	}

	base, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || !base.IsAbs() || base.Host == "" {
		return fmt.Errorf("upstream base url %q must be an absolute URL", c.Upstream.BaseURL)
	}

	if c.Upstream.Timeout < 0 {
		return errors.New("upstream timeout cannot be negative")
	}

	if c.Redis.Enabled && c.Security.LoginRateLimit > 0 && c.Security.LoginRateWindow <= 0 {
		return errors.New("login rate window must be positive when rate limiting is enabled")
	}

	return nil
}
