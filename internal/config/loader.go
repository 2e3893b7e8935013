package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load reads configuration from file and environment. File lookup order is
// /etc/keygate/config.yaml then ./config.yaml; a missing file is not an
// error because every value has a default or an env override
// (KEYGATE_SIGNING_NONCE_TTL_SECONDS and friends).
func Load() (*Config, error) {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the signing section whenever the config file changes and
// hands the fresh values to onChange. This keeps the replay windows tunable
// without a restart or redeploy.
func Watch(onChange func(SigningConfig)) error {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		// Nothing to watch without a file; env-only deployments retune via
		// restart.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	v.OnConfigChange(func(fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		onChange(cfg.Signing)
	})
	v.WatchConfig()
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "keygate")
	v.SetDefault("database.database", "keygate")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("signing.timestamp_disparity_ms", 300000)
	v.SetDefault("signing.nonce_ttl_seconds", 300)
	v.SetDefault("signing.store_timeout_ms", 2000)
	v.SetDefault("signing.memory_cache_ttl_seconds", 60)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.audit_topic", "keygate.audit")
	v.SetDefault("kafka.write_timeout", "5s")
	v.SetDefault("kafka.read_timeout", "5s")
	v.SetDefault("kafka.required_acks", 1)
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "100ms")

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.mount_path", "secret")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "keygate")
	v.SetDefault("tracing.sampling_rate", 1.0)

	v.SetDefault("pprof.enabled", false)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.limit", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/keygate/")
	v.AddConfigPath(".")

	v.SetEnvPrefix("KEYGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}
