// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the spatial projects service.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Stats     StatsConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string        `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port           int           `env:"SERVER_PORT,default=80" yaml:"port"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT,default=30s" yaml:"read_timeout"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s" yaml:"write_timeout"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT,default=120s" yaml:"idle_timeout"`
	ShutdownPeriod time.Duration `env:"SERVER_SHUTDOWN_PERIOD,default=30s" yaml:"shutdown_period"`
}

// DatabaseConfig carries the PostGIS connection settings. The variable names
// match the ones the deployment manifests inject.
type DatabaseConfig struct {
	Host            string        `env:"DB_HOST,default=localhost" yaml:"host"`
	Port            int           `env:"DB_PORT,default=5432" yaml:"port"`
	Name            string        `env:"DB_NAME,default=postgres" yaml:"name"`
	User            string        `env:"DB_USER,default=postgres" yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	SSLMode         string        `env:"DB_SSLMODE,default=disable" yaml:"sslmode"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25" yaml:"max_open_conns"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m" yaml:"conn_max_lifetime"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode)
}

// RedisConfig controls the optional project read cache. Leaving Addr empty
// disables caching.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" yaml:"addr"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `env:"REDIS_DB,default=0" yaml:"db"`
	TTL      time.Duration `env:"REDIS_CACHE_TTL,default=5m" yaml:"ttl"`
}

// LoggingConfig configures log level and format.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"LOG_FORMAT,default=text" yaml:"format"`
	Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"LOG_FILE_PREFIX" yaml:"file_prefix"`
}

// CORSConfig lists origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*" yaml:"allowed_origins"`
}

// RateLimitConfig tunes the per-client HTTP rate limiter.
type RateLimitConfig struct {
	RequestsPerSecond int  `env:"RATE_LIMIT_RPS,default=50" yaml:"requests_per_second"`
	Burst             int  `env:"RATE_LIMIT_BURST,default=100" yaml:"burst"`
	Enabled           bool `env:"RATE_LIMIT_ENABLED,default=true" yaml:"enabled"`
}

// StatsConfig controls the background spatial stats collector.
type StatsConfig struct {
	Schedule string `env:"STATS_SCHEDULE,default=@every 1m" yaml:"schedule"`
	Enabled  bool   `env:"STATS_ENABLED,default=true" yaml:"enabled"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile reads the base configuration from the environment and then
// applies overrides from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var overrides struct {
		Server    *ServerConfig    `yaml:"server"`
		Database  *DatabaseConfig  `yaml:"database"`
		Redis     *RedisConfig     `yaml:"redis"`
		Logging   *LoggingConfig   `yaml:"logging"`
		CORS      *CORSConfig      `yaml:"cors"`
		RateLimit *RateLimitConfig `yaml:"rate_limit"`
		Stats     *StatsConfig     `yaml:"stats"`
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if overrides.Server != nil {
		cfg.Server = *overrides.Server
	}
	if overrides.Database != nil {
		cfg.Database = *overrides.Database
	}
	if overrides.Redis != nil {
		cfg.Redis = *overrides.Redis
	}
	if overrides.Logging != nil {
		cfg.Logging = *overrides.Logging
	}
	if overrides.CORS != nil {
		cfg.CORS = *overrides.CORS
	}
	if overrides.RateLimit != nil {
		cfg.RateLimit = *overrides.RateLimit
	}
	if overrides.Stats != nil {
		cfg.Stats = *overrides.Stats
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
		return fmt.Errorf("database host, name and user are required")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit requests per second must be positive")
	}
	return nil
}
