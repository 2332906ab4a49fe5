// Package config loads lexicore's ambient configuration surface (spec
// §6 "Configuration surface") through github.com/spf13/viper, the way
// evalgo-org-eve's cli/root.go wires its own service configuration:
// defaults first, then an optional file, then environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NamespaceOverride holds per-namespace overrides for the two-tier
// cache's sizing and TTL knobs (spec §6: "per-namespace overrides").
type NamespaceOverride struct {
	L1MaxSize    int `mapstructure:"l1_max_size"`
	L1TTLSeconds int `mapstructure:"l1_ttl_seconds"`
	L2TTLSeconds int `mapstructure:"l2_ttl_seconds"`
}

// Config is the full configuration surface named in spec §6. Duration
// knobs are authored as plain integer seconds, matching the field names
// spec §6 uses verbatim; Duration() accessors convert to time.Duration
// for callers.
type Config struct {
	L1MaxSizePerNamespace     int     `mapstructure:"l1_max_size_per_namespace"`
	L1TTLSeconds              int     `mapstructure:"l1_ttl_seconds"`
	L2TTLSeconds              int     `mapstructure:"l2_ttl_seconds"`
	InlineThresholdBytes      int64   `mapstructure:"inline_threshold_bytes"`
	CompressionThresholdBytes int64   `mapstructure:"compression_threshold_bytes"`
	CompressionCodec          string  `mapstructure:"compression_codec"`
	BlobRootDir               string  `mapstructure:"blob_root_dir"`
	HeartbeatIntervalSeconds  int     `mapstructure:"heartbeat_interval_seconds"`
	StreamTimeoutSeconds      int     `mapstructure:"stream_timeout_seconds"`
	StrongScoreThreshold      float64 `mapstructure:"strong_score_threshold"`

	NamespaceOverrides map[string]NamespaceOverride `mapstructure:"namespace_overrides"`
}

// Default returns the recommended production defaults (spec §9's
// resolved Open Question on the inline/external threshold, 64 KiB).
func Default() *Config {
	return &Config{
		L1MaxSizePerNamespace:     10_000,
		L1TTLSeconds:              300,
		L2TTLSeconds:              86_400,
		InlineThresholdBytes:      64 * 1024,
		CompressionThresholdBytes: 4 * 1024,
		CompressionCodec:          "zstd",
		BlobRootDir:               "./data/blobs",
		HeartbeatIntervalSeconds:  15,
		StreamTimeoutSeconds:      300,
		StrongScoreThreshold:      0.8,
		NamespaceOverrides:        map[string]NamespaceOverride{},
	}
}

// L1TTL, L2TTL, HeartbeatInterval, and StreamTimeout convert the
// corresponding *Seconds field into a time.Duration.
func (c *Config) L1TTL() time.Duration             { return time.Duration(c.L1TTLSeconds) * time.Second }
func (c *Config) L2TTL() time.Duration             { return time.Duration(c.L2TTLSeconds) * time.Second }
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSeconds) * time.Second
}

// Load reads configuration from path (if non-empty), environment
// variables prefixed LEXICORE_, and falls back to Default() for
// anything unset.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("lexicore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("l1_max_size_per_namespace", d.L1MaxSizePerNamespace)
	v.SetDefault("l1_ttl_seconds", d.L1TTLSeconds)
	v.SetDefault("l2_ttl_seconds", d.L2TTLSeconds)
	v.SetDefault("inline_threshold_bytes", d.InlineThresholdBytes)
	v.SetDefault("compression_threshold_bytes", d.CompressionThresholdBytes)
	v.SetDefault("compression_codec", d.CompressionCodec)
	v.SetDefault("blob_root_dir", d.BlobRootDir)
	v.SetDefault("heartbeat_interval_seconds", d.HeartbeatIntervalSeconds)
	v.SetDefault("stream_timeout_seconds", d.StreamTimeoutSeconds)
	v.SetDefault("strong_score_threshold", d.StrongScoreThreshold)
	v.SetDefault("namespace_overrides", map[string]any{})
}

// Validate applies minimal hand-rolled checks, the way evalgo-org-eve's
// config loading does (it validates flags by hand, not via a struct-tag
// validation library).
func (c *Config) Validate() error {
	if c.L1MaxSizePerNamespace <= 0 {
		return fmt.Errorf("config: l1_max_size_per_namespace must be positive")
	}
	if c.InlineThresholdBytes < 0 {
		return fmt.Errorf("config: inline_threshold_bytes must be non-negative")
	}
	if c.BlobRootDir == "" {
		return fmt.Errorf("config: blob_root_dir is required")
	}
	if c.StrongScoreThreshold < 0 || c.StrongScoreThreshold > 1 {
		return fmt.Errorf("config: strong_score_threshold must be in [0,1]")
	}
	return nil
}
