package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	RateLimit RateLimitConfig `yaml:"ratelimit" toml:"ratelimit"`
	Dispatch  DispatchConfig  `yaml:"dispatch" toml:"dispatch"`
}

type ServerConfig struct {
	Host             string        `yaml:"host" toml:"host"`
	Port             int           `yaml:"port" toml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" toml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown" toml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled" toml:"enabled"`
	Host            string        `yaml:"host" toml:"host"`
	Port            int           `yaml:"port" toml:"port"`
	Name            string        `yaml:"name" toml:"name"`
	User            string        `yaml:"user" toml:"user"`
	Password        string        `yaml:"password" toml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns" toml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" toml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses" toml:"addresses"`
	Password  string   `yaml:"password" toml:"password"`
	DB        int      `yaml:"db" toml:"db"`
	PoolSize  int      `yaml:"pool_size" toml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level" toml:"log_level"`
	LogFormat   string `yaml:"log_format" toml:"log_format"`
	MetricsPort int    `yaml:"metrics_port" toml:"metrics_port"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" toml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" toml:"requests_per_minute"`
}

type DispatchConfig struct {
	// RequestTimeout bounds one dispatch at the HTTP boundary. Zero disables it.
	RequestTimeout time.Duration        `yaml:"request_timeout" toml:"request_timeout"`
	MaxRetries     int                  `yaml:"max_retries" toml:"max_retries"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker" toml:"circuit_breaker"`
	Iterative      IterativeConfig      `yaml:"iterative" toml:"iterative"`
	WatchConfig    bool                 `yaml:"watch_config" toml:"watch_config"`
}

type CircuitBreakerConfig struct {
	// FailureThreshold of zero disables the breakers.
	FailureThreshold      int           `yaml:"failure_threshold" toml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval" toml:"recovery_probe_interval"`
}

type IterativeConfig struct {
	// MaxPasses of 1 keeps the single-pass behavior.
	MaxPasses int `yaml:"max_passes" toml:"max_passes"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "aegis_dispatch",
			User:            "aegis",
			MaxOpenConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize: 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Dispatch: DispatchConfig{
			RequestTimeout: 60 * time.Second,
			MaxRetries:     0,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      5,
				RecoveryProbeInterval: 15 * time.Second,
			},
			Iterative: IterativeConfig{MaxPasses: 1},
		},
	}
}
