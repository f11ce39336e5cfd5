package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	AppID           uint64
	IndexerURL      string
	IndexerToken    string
	PollInterval    time.Duration
	PageLimit       uint32
	PGDSN           string
	CursorPath      string
	ResolvePayments bool
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string
}

// Load merges config file, environment variables, and flags into Config.
// An app id of zero is not an error here: it disables the sync subsystem
// while the rest of the process keeps running.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TICKETSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("indexer-url", "https://testnet-idx.algonode.cloud")
	v.SetDefault("poll-interval", 5*time.Second)
	v.SetDefault("page-limit", uint32(50))
	v.SetDefault("cursor-path", "./data/cursor.json")
	v.SetDefault("resolve-payments", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		AppID:           v.GetUint64("app-id"),
		IndexerURL:      v.GetString("indexer-url"),
		IndexerToken:    v.GetString("indexer-token"),
		PollInterval:    v.GetDuration("poll-interval"),
		PageLimit:       v.GetUint32("page-limit"),
		PGDSN:           v.GetString("pg-dsn"),
		CursorPath:      v.GetString("cursor-path"),
		ResolvePayments: v.GetBool("resolve-payments"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
