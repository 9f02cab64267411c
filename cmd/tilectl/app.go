package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/tilectl/internal/devicefactory"
	"github.com/srg/tilectl/internal/songlib"
	"github.com/srg/tilectl/internal/tilesvc"
	"github.com/srg/tilectl/pkg/config"
	"github.com/srg/tilectl/scanner"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func defaultConfigHint() string {
	return config.DefaultPath()
}

// app is what every command needs after flag parsing.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	out    io.Writer
	colors palette
}

// newApp loads the config named by --config (the default location may be
// absent) and builds the logger and output palette.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	optional := path == ""
	if optional {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	out := cmd.OutOrStdout()

	// flags are valid past this point
	cmd.SilenceUsage = true

	return &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
		colors: newPalette(!noColor && isTerminal(out)),
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newScanner creates a scanner on the default radio.
func (a *app) newScanner() (*scanner.Scanner, error) {
	s, err := scanner.NewScanner(a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE scanner: %w", err)
	}
	return s, nil
}

// newService wires the service to the radio and restores the on-disk cache.
func (a *app) newService() (*tilesvc.Service, error) {
	sc, err := a.newScanner()
	if err != nil {
		return nil, err
	}
	svc := tilesvc.New(a.cfg.ServiceConfig(), sc, devicefactory.ConnectorFactory(a.logger), a.logger)
	if snap, err := loadCacheSnapshot(a.cachePath()); err != nil {
		a.logger.WithError(err).Warn("Ignoring unreadable cache file")
	} else if snap != nil {
		svc.Restore(*snap)
	}
	return svc, nil
}

// saveCache persists the service cache. Failures are only logged.
func (a *app) saveCache(svc *tilesvc.Service) {
	if err := saveCacheSnapshot(a.cachePath(), svc.Snapshot()); err != nil {
		a.logger.WithError(err).Warn("Failed to save cache")
	}
}

func (a *app) cachePath() string {
	base := a.cfg.Path()
	if base == "" {
		base = config.DefaultPath()
	}
	return filepath.Join(filepath.Dir(base), "cache.yaml")
}

func (a *app) openLibrary() (*songlib.Library, error) {
	return songlib.Open(a.cfg.SongLibraryPath(), a.logger)
}

// resolveTags maps tag references to configured tags. With all set every
// configured tag is returned.
func (a *app) resolveTags(refs []string, all bool) ([]config.TagConfig, error) {
	if all {
		if len(a.cfg.Tags) == 0 {
			return nil, fmt.Errorf("%w: the config file lists no tags", ErrNoTags)
		}
		return a.cfg.Tags, nil
	}
	if len(refs) == 0 {
		return nil, ErrNoTags
	}
	tags := make([]config.TagConfig, 0, len(refs))
	for _, ref := range refs {
		t, err := a.cfg.FindTag(ref)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func loadCacheSnapshot(path string) (*tilesvc.CacheSnapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap tilesvc.CacheSnapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func saveCacheSnapshot(path string, snap tilesvc.CacheSnapshot) error {
	data, err := yaml.Marshal(&snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func removeCacheSnapshot(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// palette holds the output colors; all of them are no-ops when disabled.
type palette struct {
	ok, warn, fail, dim, bold *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		fail: color.New(color.FgRed, color.Bold),
		dim:  color.New(color.Faint),
		bold: color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.dim, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}
