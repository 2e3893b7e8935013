// Package config holds the keygate service configuration and its loader.
package config

import (
	"fmt"
	"time"

	"github.com/wrensec/keygate/pkg/constants"
)

// Config is the application configuration tree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Signing   SigningConfig   `mapstructure:"signing"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Pprof     PprofConfig     `mapstructure:"pprof"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// DSN builds the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SentinelAddrs  []string      `mapstructure:"sentinel_addrs"`
	SentinelMaster string        `mapstructure:"sentinel_master"`
}

// SigningConfig carries the externally tunable replay-protection knobs.
type SigningConfig struct {
	// TimestampDisparityMS is the allowed clock-skew window in epoch
	// milliseconds, symmetric around server time.
	TimestampDisparityMS int64 `mapstructure:"timestamp_disparity_ms"`
	// NonceTTLSeconds is the nonce reservation lifetime, tuned
	// independently from the timestamp window.
	NonceTTLSeconds int `mapstructure:"nonce_ttl_seconds"`
	// StoreTimeoutMS bounds a single shared-store round trip.
	StoreTimeoutMS int64 `mapstructure:"store_timeout_ms"`
	// MemoryCacheTTLSeconds bounds how long a key lives in the per-process
	// mirror before the shared cache is consulted again.
	MemoryCacheTTLSeconds int `mapstructure:"memory_cache_ttl_seconds"`
}

// TimestampDisparity returns the clock-skew window as a duration.
func (c *SigningConfig) TimestampDisparity() time.Duration {
	if c.TimestampDisparityMS <= 0 {
		return constants.DefaultTimestampDisparity
	}
	return time.Duration(c.TimestampDisparityMS) * time.Millisecond
}

// NonceTTL returns the nonce lifetime as a duration.
func (c *SigningConfig) NonceTTL() time.Duration {
	if c.NonceTTLSeconds <= 0 {
		return constants.DefaultNonceTTL
	}
	return time.Duration(c.NonceTTLSeconds) * time.Second
}

// StoreTimeout returns the shared-store round-trip bound.
func (c *SigningConfig) StoreTimeout() time.Duration {
	if c.StoreTimeoutMS <= 0 {
		return constants.DefaultStoreTimeout
	}
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// MemoryCacheTTL returns the local mirror entry lifetime.
func (c *SigningConfig) MemoryCacheTTL() time.Duration {
	if c.MemoryCacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.MemoryCacheTTLSeconds) * time.Second
}

type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	AuditTopic   string        `mapstructure:"audit_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type PprofConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitConfig tunes the optional per-key request limiter on guarded
// routes.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Limit is the number of requests allowed per window per api key.
	Limit int64 `mapstructure:"limit"`
	// Window is the fixed limiting window.
	Window time.Duration `mapstructure:"window"`
}

// Validate checks essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Signing.TimestampDisparityMS < 0 {
		return fmt.Errorf("timestamp_disparity_ms must not be negative")
	}
	if c.Signing.NonceTTLSeconds < 0 {
		return fmt.Errorf("nonce_ttl_seconds must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	if c.Vault.Enabled && c.Vault.Address == "" {
		return fmt.Errorf("vault enabled but no address configured")
	}
	return nil
}
