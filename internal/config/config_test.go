package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/dwg-reader/internal/dwg/diag"
	"github.com/a3tai/dwg-reader/internal/dwg/dwgerr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Strict)
	assert.Equal(t, uint32(5_000_000), cfg.MaxObjects)
	assert.Equal(t, uint64(512*1024*1024), cfg.MaxSectionBytes)
	assert.Equal(t, 1, cfg.Workers)
	assert.Zero(t, cfg.Limit)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Positive(t, cfg.SectionCache)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "strict text output", mutate: func(c *Config) { c.Strict = true; c.Format = FormatText }},
		{name: "zero max objects", mutate: func(c *Config) { c.MaxObjects = 0 }, wantErr: "max objects"},
		{name: "zero max section bytes", mutate: func(c *Config) { c.MaxSectionBytes = 0 }, wantErr: "max section bytes"},
		{name: "no workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: "workers"},
		{name: "negative limit", mutate: func(c *Config) { c.Limit = -1 }, wantErr: "limit"},
		{name: "empty section cache", mutate: func(c *Config) { c.SectionCache = 0 }, wantErr: "section cache"},
		{name: "unknown format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: "format must be"},
		{name: "invalid log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigParseOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strict = true
	cfg.MaxObjects = 10
	cfg.MaxSectionBytes = 4096

	assert.Equal(t, dwgerr.ParseOptions{Strict: true, MaxObjects: 10, MaxSectionBytes: 4096}, cfg.ParseOptions())
}

func TestConfigDecoderOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.Limit = 25
	cfg.BlockAdjacency = true
	cfg.SectionCache = 3

	rec := diag.NewRecorder(diag.LevelDebug)
	opts := cfg.DecoderOptions(rec)
	assert.Equal(t, cfg.ParseOptions(), opts.Parse)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 25, opts.Limit)
	assert.True(t, opts.BlockHandleAdjacency)
	assert.Equal(t, 3, opts.SectionCache)
	assert.Same(t, rec, opts.Sink)

	assert.NotNil(t, cfg.DecoderOptions(nil).Sink)
}

func TestConfigLevel(t *testing.T) {
	tests := []struct {
		logLevel string
		want     diag.Level
		debug    bool
	}{
		{"debug", diag.LevelDebug, true},
		{"info", diag.LevelInfo, false},
		{"warn", diag.LevelWarn, false},
		{"error", diag.LevelError, false},
		{"bogus", diag.LevelWarn, false},
	}
	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.want, cfg.Level())
			assert.Equal(t, tt.debug, cfg.IsDebug())
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Input = "/tmp/plan.dwg"
	s := cfg.String()
	assert.Contains(t, s, "Input: /tmp/plan.dwg")
	assert.Contains(t, s, "Strict: false")
	assert.Contains(t, s, "Format: json")
}
