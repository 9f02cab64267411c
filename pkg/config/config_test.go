package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "table", cfg.OutputFormat)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, 15*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 5*time.Second, cfg.ExchangeTimeout)
	assert.Equal(t, time.Hour, cfg.MappingTTL)
	assert.Equal(t, 60*time.Second, cfg.ScanTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.PacketDelay)
	assert.Empty(t, cfg.Tags)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	// GOAL: Verify a YAML file overlays the defaults
	//
	// TEST SCENARIO: File sets a few fields and two tags → those change, everything else keeps its default

	path := writeConfig(t, `
log_level: debug
scan_timeout: 4s
packet_delay: 50ms
tags:
  - uuid: c452338d1e0a1234
    name: Keys
    auth_key: AAECAwQFBgcICQoLDA0ODw==
    product: MATE
  - uuid: e17f2011ab035678
    name: Wallet
    auth_key: AAECAwQFBgcICQoLDA0ODw==
`)

	cfg, err := Load(path, false)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.PacketDelay)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout, "unset fields MUST keep defaults")
	require.Len(t, cfg.Tags, 2)
	assert.Equal(t, TagConfig{
		UUID:    "c452338d1e0a1234",
		Name:    "Keys",
		AuthKey: "AAECAwQFBgcICQoLDA0ODw==",
		Product: "MATE",
	}, cfg.Tags[0])
	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "songs.yaml"), cfg.SongLibraryPath())
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ScanTimeout, cfg.ScanTimeout)

	_, err = Load(path, false)
	assert.ErrorContains(t, err, "failed to read config")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed yaml", "tags: [", "failed to parse config"},
		{"bad duration", "scan_timeout: soon", "failed to parse config"},
		{"bad log level", "log_level: loud", "invalid log level"},
		{"bad format", "output_format: xml", "invalid output format"},
		{"no attempts", "connect_attempts: 0", "connect_attempts"},
		{"tag without uuid", "tags:\n  - name: Keys", "missing uuid"},
		{"duplicate uuid", "tags:\n  - uuid: AA\n  - uuid: aa", "duplicate uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), false)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     logrus.Level
	}{
		{"debug", "debug", logrus.DebugLevel},
		{"info", "info", logrus.InfoLevel},
		{"warn", "warn", logrus.WarnLevel},
		{"error", "error", logrus.ErrorLevel},
		{"invalid falls back to info", "chatty", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}

			logger := cfg.NewLogger()

			assert.Equal(t, tt.want, logger.GetLevel())
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			assert.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestConfig_ServiceConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScanTimeout = 3 * time.Second
	cfg.ConnectAttempts = 5
	cfg.MappingTTL = 10 * time.Minute

	sc := cfg.ServiceConfig()

	assert.Equal(t, 3*time.Second, sc.ScanTimeout)
	assert.Equal(t, 5, sc.ConnectAttempts)
	assert.Equal(t, 10*time.Minute, sc.MappingTTL)
	assert.Equal(t, 250*time.Millisecond, sc.RetryBackoff, "unexposed settings MUST keep service defaults")
	assert.Equal(t, 100*time.Millisecond, sc.SettleDelay)
}

func TestConfig_FindTag(t *testing.T) {
	cfg := &Config{Tags: []TagConfig{
		{UUID: "c452338d1e0a1234", Name: "Keys"},
		{UUID: "c4aa00000000ffff", Name: "Wallet"},
		{UUID: "e17f2011ab035678", Name: "Bike"},
	}}

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"uuid", "C452338D1E0A1234", "Keys"},
		{"name", "wallet", "Wallet"},
		{"uuid prefix", "e17f", "Bike"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := cfg.FindTag(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tag.Name)
		})
	}

	_, err := cfg.FindTag("c4")
	assert.ErrorIs(t, err, ErrAmbiguousTag)

	_, err = cfg.FindTag("nothing")
	assert.ErrorIs(t, err, ErrTagNotFound)

	_, err = cfg.FindTag(" ")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestTagConfig_Tag(t *testing.T) {
	tc := TagConfig{UUID: "u", Name: "n", AuthKey: "k", Product: "p"}

	tag := tc.Tag()

	assert.Equal(t, "u", tag.UUID)
	assert.Equal(t, "n", tag.Name)
	assert.Equal(t, "k", tag.AuthKey)
}

func BenchmarkConfig_NewLogger(b *testing.B) {
	cfg := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.NewLogger()
	}
}
