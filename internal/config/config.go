// Package config handles global configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/otus-codec/pkg/packet"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `otus-codec:` root key in YAML.
type GlobalConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"`  // json / text
	Pattern string           `mapstructure:"pattern"` // text only, e.g. "%time [%level] %field %msg"
	Time    string           `mapstructure:"time"`    // Go time layout
	Output  string           `mapstructure:"output"`  // stdout / stderr
	File    FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Decoder ───

// DecoderConfig configures frame decoding.
type DecoderConfig struct {
	Link         string             `mapstructure:"link"` // outermost protocol, e.g. "ethernet"
	StopOnError  bool               `mapstructure:"stop_on_error"`
	Filter       string             `mapstructure:"filter"` // BPF program, tcpdump -ddd format
	IPReassembly IPReassemblyConfig `mapstructure:"ip_reassembly"`
}

// IPReassemblyConfig controls IPv4 fragment reassembly.
type IPReassemblyConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Timeout             string `mapstructure:"timeout"`
	MaxFragments        int    `mapstructure:"max_fragments"`
	MaxFragmentsPerFlow int    `mapstructure:"max_fragments_per_flow"`
	MaxReassembledSize  int    `mapstructure:"max_reassembled_size"`
	RateLimitPerSource  int    `mapstructure:"rate_limit_per_source"` // fragments per window, 0 = unlimited
	RateLimitWindow     string `mapstructure:"rate_limit_window"`

	// Parsed by ValidateAndApplyDefaults.
	TimeoutDuration         time.Duration `mapstructure:"-"`
	RateLimitWindowDuration time.Duration `mapstructure:"-"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"` // empty = no HTTP endpoint
	Path    string `mapstructure:"path"`
}

// ─── Loading ───

const rootKey = "otus-codec"

// configRoot is the top-level wrapper matching the YAML structure `otus-codec: ...`.
type configRoot struct {
	OtusCodec GlobalConfig `mapstructure:"otus-codec"`
}

// Load loads configuration from file.
// The YAML file uses `otus-codec:` as root key; env vars use the OTUS_CODEC_
// prefix (e.g., OTUS_CODEC_LOG_LEVEL). An empty path yields the defaults plus
// env overrides.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Key "otus-codec.log.level" maps to env "OTUS_CODEC_LOG_LEVEL".
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.OtusCodec

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *GlobalConfig {
	cfg, err := Load("")
	if err != nil {
		// Only env overrides can make the defaults invalid.
		panic(err)
	}
	return cfg
}

// setDefaults sets default values for configuration.
// All keys use the "otus-codec." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	def := func(key string, value interface{}) { v.SetDefault(rootKey+"."+key, value) }

	// Log defaults
	def("log.level", "info")
	def("log.format", "text")
	def("log.pattern", "%time [%level] %field %msg")
	def("log.time", "2006-01-02 15:04:05.000")
	def("log.output", "stderr")
	def("log.file.enabled", false)
	def("log.file.path", "/var/log/otus-codec/otus-codec.log")
	def("log.file.rotation.max_size_mb", 100)
	def("log.file.rotation.max_age_days", 30)
	def("log.file.rotation.max_backups", 5)
	def("log.file.rotation.compress", true)

	// Decoder defaults
	def("decoder.link", "ethernet")
	def("decoder.stop_on_error", false)
	def("decoder.filter", "")
	def("decoder.ip_reassembly.enabled", true)
	def("decoder.ip_reassembly.timeout", "30s")
	def("decoder.ip_reassembly.max_fragments", 10000)
	def("decoder.ip_reassembly.max_fragments_per_flow", 100)
	def("decoder.ip_reassembly.max_reassembled_size", 65535)
	def("decoder.ip_reassembly.rate_limit_per_source", 0)
	def("decoder.ip_reassembly.rate_limit_window", "10s")

	// Metrics defaults
	def("metrics.enabled", true)
	def("metrics.listen", "")
	def("metrics.path", "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.Output != "stdout" && cfg.Log.Output != "stderr" {
		return fmt.Errorf("invalid log output: %s (must be stdout/stderr)", cfg.Log.Output)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true")
	}

	// ── Decoder validation ──
	cfg.Decoder.Link = strings.ToLower(cfg.Decoder.Link)
	if _, ok := packet.ParseKind(cfg.Decoder.Link); !ok {
		return fmt.Errorf("invalid decoder.link: %s", cfg.Decoder.Link)
	}

	r := &cfg.Decoder.IPReassembly
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid decoder.ip_reassembly.timeout: %q", r.Timeout)
	}
	r.TimeoutDuration = d
	if r.MaxFragments <= 0 {
		return fmt.Errorf("decoder.ip_reassembly.max_fragments must be positive, got %d", r.MaxFragments)
	}
	if r.MaxFragmentsPerFlow <= 0 {
		return fmt.Errorf("decoder.ip_reassembly.max_fragments_per_flow must be positive, got %d", r.MaxFragmentsPerFlow)
	}
	if r.MaxReassembledSize <= 0 || r.MaxReassembledSize > 65535 {
		return fmt.Errorf("decoder.ip_reassembly.max_reassembled_size must be in (0, 65535], got %d", r.MaxReassembledSize)
	}
	if r.RateLimitPerSource < 0 {
		return fmt.Errorf("decoder.ip_reassembly.rate_limit_per_source must not be negative")
	}
	w, err := time.ParseDuration(r.RateLimitWindow)
	if err != nil || w <= 0 {
		return fmt.Errorf("invalid decoder.ip_reassembly.rate_limit_window: %q", r.RateLimitWindow)
	}
	r.RateLimitWindowDuration = w

	// ── Metrics ──
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}
