package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/tilesvc"
	"gopkg.in/yaml.v3"
)

var (
	ErrTagNotFound  = errors.New("tag not found in config")
	ErrAmbiguousTag = errors.New("tag reference is ambiguous")
)

// OutputFormats lists the accepted values of OutputFormat.
var OutputFormats = []string{"table", "json"}

// TagConfig is the part of a Tile account record needed to talk to a tag.
type TagConfig struct {
	UUID    string `yaml:"uuid" json:"uuid"`
	Name    string `yaml:"name" json:"name"`
	AuthKey string `yaml:"auth_key" json:"-"` // base64, 16 bytes
	Product string `yaml:"product,omitempty" json:"product,omitempty"`
}

// Tag converts the record to the service's view of it.
func (t TagConfig) Tag() tilesvc.Tag {
	return tilesvc.Tag{UUID: t.UUID, Name: t.Name, AuthKey: t.AuthKey}
}

// Config holds application configuration
type Config struct {
	LogLevel     string `yaml:"log_level" default:"info"`
	OutputFormat string `yaml:"output_format" default:"table"`

	ScanTimeout     time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"30s"`
	ConnectAttempts int           `yaml:"connect_attempts" default:"3"`
	AuthTimeout     time.Duration `yaml:"auth_timeout" default:"15s"`
	ExchangeTimeout time.Duration `yaml:"exchange_timeout" default:"5s"`
	MappingTTL      time.Duration `yaml:"mapping_ttl" default:"1h"`
	ScanTTL         time.Duration `yaml:"scan_ttl" default:"60s"`
	PacketDelay     time.Duration `yaml:"packet_delay" default:"100ms"`

	// SongLibrary is the song library file. Empty means songs.yaml next to the config.
	SongLibrary string `yaml:"song_library"`

	Tags []TagConfig `yaml:"tags"`

	path string
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultPath is $XDG_CONFIG_HOME/tilectl/config.yaml or the platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tilectl.yaml"
	}
	return filepath.Join(dir, "tilectl", "config.yaml")
}

// Load reads a YAML config file over the defaults. When optional is set a
// missing file yields the defaults.
func Load(path string, optional bool) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges and the tag list.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if !c.validFormat() {
		return fmt.Errorf("invalid output format '%s': must be one of %v", c.OutputFormat, OutputFormats)
	}
	if c.ConnectAttempts < 1 {
		return fmt.Errorf("connect_attempts must be at least 1")
	}

	seen := make(map[string]bool, len(c.Tags))
	for i, t := range c.Tags {
		if strings.TrimSpace(t.UUID) == "" {
			return fmt.Errorf("tag %d: missing uuid", i+1)
		}
		key := strings.ToLower(t.UUID)
		if seen[key] {
			return fmt.Errorf("tag %d: duplicate uuid %s", i+1, t.UUID)
		}
		seen[key] = true
	}
	return nil
}

func (c *Config) validFormat() bool {
	for _, f := range OutputFormats {
		if c.OutputFormat == f {
			return true
		}
	}
	return false
}

// Path returns the file the config was loaded from, if any.
func (c *Config) Path() string { return c.path }

// SongLibraryPath resolves the song library location.
func (c *Config) SongLibraryPath() string {
	if c.SongLibrary != "" {
		return c.SongLibrary
	}
	base := c.path
	if base == "" {
		base = DefaultPath()
	}
	return filepath.Join(filepath.Dir(base), "songs.yaml")
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// ServiceConfig derives the service timing policy. Delays the config does
// not expose keep their service defaults.
func (c *Config) ServiceConfig() tilesvc.ServiceConfig {
	sc := tilesvc.DefaultServiceConfig()
	sc.ScanTimeout = c.ScanTimeout
	sc.ConnectTimeout = c.ConnectTimeout
	sc.ConnectAttempts = c.ConnectAttempts
	sc.AuthTimeout = c.AuthTimeout
	sc.ExchangeTimeout = c.ExchangeTimeout
	sc.MappingTTL = c.MappingTTL
	sc.ScanTTL = c.ScanTTL
	sc.PacketDelay = c.PacketDelay
	return sc
}

// FindTag resolves ref as a uuid, a case-insensitive name or a unique uuid prefix.
func (c *Config) FindTag(ref string) (TagConfig, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return TagConfig{}, fmt.Errorf("%w: empty reference", ErrTagNotFound)
	}

	for _, t := range c.Tags {
		if strings.EqualFold(t.UUID, ref) {
			return t, nil
		}
	}

	var matches []TagConfig
	for _, t := range c.Tags {
		if strings.EqualFold(t.Name, ref) || strings.HasPrefix(strings.ToLower(t.UUID), strings.ToLower(ref)) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return TagConfig{}, fmt.Errorf("%w: %q", ErrTagNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return TagConfig{}, fmt.Errorf("%w: %q matches %d tags", ErrAmbiguousTag, ref, len(matches))
	}
}
