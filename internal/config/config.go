// Package config loads runtime configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnrichmentConfig for the optional narrative model
type EnrichmentConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// Timeout as a duration
func (e EnrichmentConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// Config is the full runtime configuration
type Config struct {
	PolicyPath       string `mapstructure:"policy_path"`        // file or directory; empty = built-in presets
	AuditPath        string `mapstructure:"audit_path"`         // JSONL decision log
	AuditMaxSizeMB   int    `mapstructure:"audit_max_size_mb"`  // 0 = no rotation
	AuditMaxBackups  int    `mapstructure:"audit_max_backups"`
	AuditAllowed     bool   `mapstructure:"audit_allowed"`      // also record allowed decisions
	GPUNodeThreshold int    `mapstructure:"gpu_node_threshold"`
	Kubeconfig       string `mapstructure:"kubeconfig"`

	Enrichment EnrichmentConfig `mapstructure:"enrichment"`

	LogFormat string `mapstructure:"log_format"`
	LogLevel  string `mapstructure:"log_level"`
	LogOutput string `mapstructure:"log_output"`
}

// Load reads config.yaml from the usual locations, then environment
// variables with the CLUSTERGUARD_ prefix. Missing file is fine;
// defaults cover everything.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/clusterguard/")
	v.AddConfigPath("$HOME/.clusterguard")
	v.AddConfigPath(".")

	v.SetDefault("policy_path", "")
	v.SetDefault("audit_path", "./clusterguard-audit.jsonl")
	v.SetDefault("audit_max_size_mb", 0)
	v.SetDefault("audit_max_backups", 3)
	v.SetDefault("audit_allowed", false)
	v.SetDefault("gpu_node_threshold", 10)
	v.SetDefault("kubeconfig", "")
	v.SetDefault("enrichment.enabled", false)
	v.SetDefault("enrichment.endpoint", "")
	v.SetDefault("enrichment.api_key", "")
	v.SetDefault("enrichment.model", "gpt-4o-mini")
	v.SetDefault("enrichment.timeout_sec", 15)
	v.SetDefault("log_format", "pretty")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_output", "stderr")

	v.SetEnvPrefix("CLUSTERGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
