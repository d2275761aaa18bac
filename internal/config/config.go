// Package config loads the optional cleanigo config file and maps it onto
// engine options. Flags always override file values; a missing config file
// is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/cleanigo/cleanigo/internal/core"
	"github.com/cleanigo/cleanigo/internal/dedupe"
)

// Config mirrors the recognized config file keys.
type Config struct {
	PrefixBytes     int64         `mapstructure:"partial_hash_prefix_bytes"`
	SuffixBytes     int64         `mapstructure:"partial_hash_suffix_bytes"`
	SuffixThreshold int64         `mapstructure:"partial_hash_suffix_threshold"`
	HashAlgorithm   string        `mapstructure:"hash_algorithm"`
	KeeperStrategy  string        `mapstructure:"keeper_strategy"`
	SkipZeroByte    bool          `mapstructure:"skip_zero_byte"`
	MinFileSize     string        `mapstructure:"min_file_size"`
	ByteCompare     bool          `mapstructure:"byte_compare"`
	DryRun          bool          `mapstructure:"dry_run"`
	Workers         int           `mapstructure:"workers"`
	FileTimeout     time.Duration `mapstructure:"file_timeout"`
	Exclude         []string      `mapstructure:"exclude"`
	TrashDir        string        `mapstructure:"trash_dir"`
}

// Load reads the config file. path "" searches the standard locations
// (~/.config/cleanigo/config.yaml).
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults := dedupe.DefaultOptions()
	v.SetDefault("partial_hash_prefix_bytes", defaults.PrefixBytes)
	v.SetDefault("partial_hash_suffix_bytes", defaults.SuffixBytes)
	v.SetDefault("partial_hash_suffix_threshold", defaults.SuffixThreshold)
	v.SetDefault("hash_algorithm", string(defaults.Hash))
	v.SetDefault("keeper_strategy", string(defaults.Keeper))
	v.SetDefault("skip_zero_byte", defaults.SkipZeroByte)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("file_timeout", defaults.FileTimeout)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cleanigo"))
			v.AddConfigPath(filepath.Join(home, ".cleanigo"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read %q: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	return &cfg, nil
}

// DedupeOptions converts the config into validated engine options.
func (c *Config) DedupeOptions() (dedupe.Options, error) {
	opts := dedupe.DefaultOptions()
	opts.PrefixBytes = c.PrefixBytes
	opts.SuffixBytes = c.SuffixBytes
	opts.SuffixThreshold = c.SuffixThreshold
	opts.Hash = dedupe.HashAlgorithm(c.HashAlgorithm)
	opts.Keeper = dedupe.KeeperStrategy(c.KeeperStrategy)
	opts.SkipZeroByte = c.SkipZeroByte
	opts.ByteCompare = c.ByteCompare
	opts.DryRun = c.DryRun
	if c.Workers > 0 {
		opts.Workers = c.Workers
	}
	if c.FileTimeout > 0 {
		opts.FileTimeout = c.FileTimeout
	}
	if c.MinFileSize != "" {
		n, err := core.ParseSize(c.MinFileSize)
		if err != nil {
			return opts, fmt.Errorf("min_file_size: %w", err)
		}
		opts.MinFileSize = n
	}
	return opts, opts.Validate()
}
