package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/dwg-reader/internal/dwg/container"
	"github.com/a3tai/dwg-reader/internal/dwg/decoder"
	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

const (
	// Output formats
	FormatJSON = "json"
	FormatText = "text"

	// Default values
	DefaultLogLevel = "warn"
	DefaultWorkers  = 1

	// EnvPrefix is prepended to every environment variable the loader reads
	EnvPrefix = "DWG_READER"
)

var (
	// ErrVersionRequested is returned when --version is on the command line
	ErrVersionRequested = errors.New("version requested")
	// ErrNoInput is returned when no drawing path was given
	ErrNoInput = errors.New("no input drawing given")
)

// Config holds the settings shared by the command line tools
type Config struct {
	// Decoding
	Strict          bool
	MaxObjects      uint32
	MaxSectionBytes uint64
	Workers         int
	Limit           int
	BlockAdjacency  bool
	SectionCache    int

	// Output
	Format   string
	LogLevel string

	// Input is the drawing path, Listings the positional listing names after it
	Input    string
	Listings []string

	Version string
}

// DefaultConfig returns a permissive configuration matching the library
// defaults
func DefaultConfig() *Config {
	parse := dwgerr.DefaultParseOptions()
	return &Config{
		Strict:          parse.Strict,
		MaxObjects:      parse.MaxObjects,
		MaxSectionBytes: parse.MaxSectionBytes,
		Workers:         DefaultWorkers,
		SectionCache:    container.DefaultOptions().CacheSize,
		Format:          FormatJSON,
		LogLevel:        DefaultLogLevel,
		Version:         "0.1.0",
	}
}

// LoadFromFlags parses the process command line and environment
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	args := pflag.Args()
	if len(args) == 0 {
		return nil, ErrNoInput
	}
	cfg.Input = args[0]
	cfg.Listings = args[1:]
	if abs, err := filepath.Abs(cfg.Input); err == nil {
		cfg.Input = abs
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if _, err := os.Stat(cfg.Input); err != nil {
		return nil, errors.Wrapf(err, "cannot access drawing %s", cfg.Input)
	}
	return cfg, nil
}

// setupViperEnvironment maps DWG_READER_MAX_OBJECTS style variables onto
// the dashed flag names
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("strict", cfg.Strict)
	viper.SetDefault("max-objects", cfg.MaxObjects)
	viper.SetDefault("max-section-bytes", cfg.MaxSectionBytes)
	viper.SetDefault("workers", cfg.Workers)
	viper.SetDefault("limit", cfg.Limit)
	viper.SetDefault("block-adjacency", cfg.BlockAdjacency)
	viper.SetDefault("section-cache", cfg.SectionCache)
	viper.SetDefault("format", cfg.Format)
	viper.SetDefault("loglevel", cfg.LogLevel)
}

var flagNames = []string{
	"strict", "max-objects", "max-section-bytes", "workers", "limit",
	"block-adjacency", "section-cache", "format", "loglevel",
}

func defineCommandLineFlags(cfg *Config) {
	pflag.Bool("strict", cfg.Strict, "Abort on the first undecodable record instead of skipping it")
	pflag.Uint32("max-objects", cfg.MaxObjects, "Maximum number of object map entries")
	pflag.Uint64("max-section-bytes", cfg.MaxSectionBytes, "Maximum decompressed size of one section in bytes")
	pflag.Int("workers", cfg.Workers, "Records decoded in parallel (output order is unaffected)")
	pflag.Int("limit", cfg.Limit, "Maximum rows per listing, 0 for all")
	pflag.Bool("block-adjacency", cfg.BlockAdjacency, "Name BLOCK/ENDBLK records by handle adjacency when owner links are missing")
	pflag.Int("section-cache", cfg.SectionCache, "Decoded sections kept in memory")
	pflag.String("format", cfg.Format, "Output format (json, text)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s [options] <drawing.dwg> [listing...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s plan.dwg lines arcs          # two listings as JSON\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --strict --format=text plan.dwg\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		for _, name := range flagNames {
			fmt.Fprintf(os.Stderr, "  %s_%s\n", EnvPrefix, strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
		}
	}
}

func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

func populateConfigFromViper(cfg *Config) {
	cfg.Strict = viper.GetBool("strict")
	cfg.MaxObjects = viper.GetUint32("max-objects")
	cfg.MaxSectionBytes = viper.GetUint64("max-section-bytes")
	cfg.Workers = viper.GetInt("workers")
	cfg.Limit = viper.GetInt("limit")
	cfg.BlockAdjacency = viper.GetBool("block-adjacency")
	cfg.SectionCache = viper.GetInt("section-cache")
	cfg.Format = viper.GetString("format")
	cfg.LogLevel = viper.GetString("loglevel")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.ParseOptions().Validate(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	if c.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if c.SectionCache < 1 {
		return errors.New("section cache must hold at least one section")
	}
	if c.Format != FormatJSON && c.Format != FormatText {
		return errors.Errorf("format must be either '%s' or '%s'", FormatJSON, FormatText)
	}
	if _, err := diag.ParseLevel(c.LogLevel); err != nil {
		return errors.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// ParseOptions returns the resource limits and error policy
func (c *Config) ParseOptions() dwgerr.ParseOptions {
	return dwgerr.ParseOptions{
		Strict:          c.Strict,
		MaxObjects:      c.MaxObjects,
		MaxSectionBytes: c.MaxSectionBytes,
	}
}

// Level returns the diagnostic level, falling back to warn
func (c *Config) Level() diag.Level {
	l, err := diag.ParseLevel(c.LogLevel)
	if err != nil {
		return diag.LevelWarn
	}
	return l
}

// DecoderOptions builds decoder options that report through sink
func (c *Config) DecoderOptions(sink diag.Sink) decoder.Options {
	opts := decoder.DefaultOptions()
	opts.Parse = c.ParseOptions()
	if sink != nil {
		opts.Sink = sink
	}
	opts.Workers = c.Workers
	opts.Limit = c.Limit
	opts.BlockHandleAdjacency = c.BlockAdjacency
	opts.SectionCache = c.SectionCache
	return opts
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Input: %s, Strict: %t, MaxObjects: %d, MaxSectionBytes: %d, Workers: %d, Limit: %d, Format: %s, LogLevel: %s}",
		c.Input, c.Strict, c.MaxObjects, c.MaxSectionBytes, c.Workers, c.Limit, c.Format, c.LogLevel)
}
