package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/huels-originals/geobatch/pkg/batch"
	"github.com/huels-originals/geobatch/pkg/logging"
)

// config is the CLI configuration: flags override GEOAPIFY_* environment
// variables, which override geobatch.yaml.
type config struct {
	Key         string      `mapstructure:"key"`
	BaseURL     string      `mapstructure:"base_url"`
	MetricsAddr string      `mapstructure:"metrics_addr"`
	Log         logConfig   `mapstructure:"log"`
	Batch       batchConfig `mapstructure:"batch"`
	Redis       redisConfig `mapstructure:"redis"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type batchConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	SubmitDelay     time.Duration `mapstructure:"submit_delay"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
}

// redisConfig selects the Redis manifest store when Addr is set.
type redisConfig struct {
	Addr        string        `mapstructure:"addr"`
	ManifestTTL time.Duration `mapstructure:"manifest_ttl"`
}

// flagKeys maps persistent flags to their config keys.
var flagKeys = map[string]string{
	"key":          "key",
	"base-url":     "base_url",
	"metrics-addr": "metrics_addr",
	"log-level":    "log.level",
	"log-pretty":   "log.pretty",
	"redis-addr":   "redis.addr",
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetConfigName("geobatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GEOAPIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("key", "")
	v.SetDefault("base_url", batch.DefaultBaseURL)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("batch.concurrency", batch.DefaultMaxConcurrency)
	v.SetDefault("batch.submit_delay", 0)
	v.SetDefault("batch.max_poll_attempts", 0)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.manifest_ttl", 0)

	return v
}

// loadConfig reads the optional config file, binds flags and decodes.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, file string) (*config, error) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind %s: %w", name, err)
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// requireKey fails when no API key was configured.
func (c *config) requireKey() error {
	if c.Key == "" {
		return errors.New("no API key: pass --key or set GEOAPIFY_KEY")
	}
	return nil
}
