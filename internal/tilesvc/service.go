// Package tilesvc is the operation layer over the Tile protocol: it resolves
// tag UUIDs to nearby devices, serializes work per tag, connects with retry,
// authenticates and runs ring or song upload commands.
package tilesvc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/device"
	"github.com/srg/tilectl/internal/groutine"
	"github.com/srg/tilectl/internal/song"
	"github.com/srg/tilectl/internal/toa"
	"github.com/srg/tilectl/scanner"
)

const (
	unknownTileName = "Unknown Tile"
	unknownRSSI     = -100
)

// ServiceConfig holds the timing and retry policy of a Service.
type ServiceConfig struct {
	ScanTimeout     time.Duration `default:"10s"`
	ConnectTimeout  time.Duration `default:"30s"`
	ConnectAttempts int           `default:"3"`
	RetryBackoff    time.Duration `default:"250ms"` // multiplied by the attempt number
	MappingTTL      time.Duration `default:"1h"`
	ScanTTL         time.Duration `default:"60s"`
	AuthTimeout     time.Duration `default:"15s"`
	ExchangeTimeout time.Duration `default:"5s"`
	SettleDelay     time.Duration `default:"100ms"`
	PacketDelay     time.Duration `default:"100ms"`
}

// DefaultServiceConfig returns the default policy
func DefaultServiceConfig() ServiceConfig {
	cfg := ServiceConfig{}
	defaults.SetDefaults(&cfg)
	return cfg
}

// Tag is the part of a tag record needed to talk to it.
type Tag struct {
	UUID    string
	Name    string
	AuthKey string // base64
}

func (t Tag) label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.UUID
}

// Scanner discovers nearby peripherals. *scanner.Scanner implements it.
type Scanner interface {
	Scan(ctx context.Context, opts *scanner.ScanOptions, progress scanner.ProgressCallback) ([]scanner.Entry, error)
}

// RingOptions selects how a tag rings. Zero values mean medium volume, the
// default duration and the tag's selected song.
type RingOptions struct {
	Volume   toa.Volume
	Duration int
	SongID   byte
}

// Option is a functional option for configuring a Service
type Option func(*Service)

// WithClock replaces time.Now for cache freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service resolves, connects to and operates Tiles. It is safe for concurrent
// use; operations on the same tag are rejected while one is running.
type Service struct {
	cfg       ServiceConfig
	scanner   Scanner
	connector device.Connector
	logger    *logrus.Logger
	now       func() time.Time

	locks  *hashmap.Map[string, *sync.Mutex]
	scanMu sync.Mutex

	mu    sync.RWMutex
	cache *bleCache
}

// New creates a Service. A nil logger gets a default logrus logger.
func New(cfg ServiceConfig, sc Scanner, connector device.Connector, logger *logrus.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Service{
		cfg:       cfg,
		scanner:   sc,
		connector: connector,
		logger:    logger,
		now:       time.Now,
		locks:     hashmap.New[string, *sync.Mutex](),
		cache:     newBLECache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns nearby Tiles. Fresh, non-empty cached results are returned
// without touching the radio unless forceRefresh is set. Concurrent scans are
// serialized. A timeout of zero uses the configured scan timeout.
func (s *Service) Scan(ctx context.Context, timeout time.Duration, forceRefresh bool) ([]DiscoveredTile, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	s.mu.RLock()
	if !forceRefresh && !s.cache.stale(s.now(), s.cfg.ScanTTL) && len(s.cache.discovered) > 0 {
		cached := append([]DiscoveredTile(nil), s.cache.discovered...)
		s.mu.RUnlock()
		s.logger.WithField("tiles", len(cached)).Debug("Using cached scan results")
		return cached, nil
	}
	s.mu.RUnlock()

	if timeout <= 0 {
		timeout = s.cfg.ScanTimeout
	}
	opts := scanner.DefaultScanOptions()
	opts.Duration = timeout
	opts.TilesOnly = true

	s.logger.WithField("timeout", timeout).Debug("Starting BLE scan for Tiles")
	entries, err := s.scanner.Scan(ctx, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	now := s.now()
	tiles := make([]DiscoveredTile, 0, len(entries))
	for _, e := range entries {
		t := DiscoveredTile{Address: e.Address, Name: e.Name, RSSI: e.RSSI, LastSeen: now}
		if t.Name == "" {
			t.Name = unknownTileName
		}
		if t.RSSI == 0 {
			t.RSSI = unknownRSSI
		}
		tiles = append(tiles, t)
	}

	s.mu.Lock()
	s.cache.storeScan(tiles, now)
	s.mu.Unlock()

	s.logger.WithField("tiles", len(tiles)).Info("BLE scan complete")
	return append([]DiscoveredTile(nil), tiles...), nil
}

// FindDevice picks the device for a tag UUID: a fresh cached mapping first,
// then an address prefix match over tiles (the last scan when nil), then the
// only tile if exactly one was seen. Matches are cached.
func (s *Service) FindDevice(uuid string, tiles []DiscoveredTile) (DiscoveredTile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if addr, ok := s.cache.mapping(uuid, now, s.cfg.MappingTTL); ok {
		if t, ok := s.cache.device(addr, now, s.cfg.ScanTTL); ok {
			s.logger.WithFields(logrus.Fields{"uuid": shortID(uuid), "address": addr}).Debug("Cache hit")
			return t, true
		}
	}

	if tiles == nil {
		tiles = s.cache.discovered
	}

	for _, t := range tiles {
		if matchAddress(uuid, t.Address) {
			s.cacheMappingLocked(uuid, t.Address, now)
			return t, true
		}
	}

	if len(tiles) == 1 {
		t := tiles[0]
		s.logger.WithField("address", t.Address).Warn("No UUID match, using only discovered Tile")
		s.cacheMappingLocked(uuid, t.Address, now)
		return t, true
	}
	return DiscoveredTile{}, false
}

func (s *Service) cacheMappingLocked(uuid, address string, now time.Time) {
	s.cache.mappings[uuid] = Mapping{Address: address, Seen: now}
	s.logger.WithFields(logrus.Fields{"uuid": shortID(uuid), "address": address}).Debug("Cached mapping")
}

func (s *Service) invalidate(uuid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache.mappings, uuid)
}

// ClearCache drops every mapping and scan result.
func (s *Service) ClearCache() {
	s.mu.Lock()
	s.cache = newBLECache()
	s.mu.Unlock()
	s.logger.Info("Tile BLE cache cleared")
}

// Snapshot copies the cache for persistence.
func (s *Service) Snapshot() CacheSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.snapshot()
}

// Restore replaces the cache with a snapshot taken earlier. TTLs are checked
// against the snapshot's own timestamps.
func (s *Service) Restore(snap CacheSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = cacheFromSnapshot(snap)
}

// CacheStats reports cache sizes and scan freshness as of now.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.stats(s.now(), s.cfg.ScanTTL)
}

// Ring rings a tag. An unconfirmed ring is still a success.
func (s *Service) Ring(ctx context.Context, tag Tag, opts RingOptions) (toa.RingResult, error) {
	if opts.Duration == 0 {
		opts.Duration = toa.DefaultRingDuration
	}
	var result toa.RingResult
	err := s.withTag(ctx, tag, "ring", func(ctx context.Context, session *toa.Session) error {
		var err error
		result, err = session.Ring(ctx, toa.RingRequest{
			Volume:   opts.Volume,
			Duration: opts.Duration,
			SongID:   opts.SongID,
		})
		return err
	})
	return result, err
}

// TileDetails is what a tag reveals about itself during the handshake.
type TileDetails struct {
	UUID       string `json:"uuid"`
	Address    string `json:"address"`
	TileID     string `json:"tile_id,omitempty"`
	Firmware   string `json:"firmware,omitempty"`
	Model      string `json:"model,omitempty"`
	Hardware   string `json:"hardware,omitempty"`
	Channel    byte   `json:"channel"`
	MaxPayload int    `json:"max_payload"`
	Features   string `json:"features,omitempty"` // hex
}

// Inspect authenticates with the tag and reports its device information
// without changing anything on it.
func (s *Service) Inspect(ctx context.Context, tag Tag) (TileDetails, error) {
	var details TileDetails
	err := s.withTag(ctx, tag, "inspect", func(_ context.Context, session *toa.Session) error {
		info := session.Info()
		details = TileDetails{
			UUID:       tag.UUID,
			Address:    session.Address(),
			TileID:     info.TileID,
			Firmware:   info.Firmware,
			Model:      info.Model,
			Hardware:   info.Hardware,
			Channel:    session.Channel(),
			MaxPayload: session.MaxPayload(),
			Features:   hex.EncodeToString(session.Features()),
		}
		return nil
	})
	return details, err
}

// ProgramSong uploads an encoded song blob.
func (s *Service) ProgramSong(ctx context.Context, tag Tag, data []byte) error {
	return s.withTag(ctx, tag, "program", func(ctx context.Context, session *toa.Session) error {
		return session.ProgramSong(ctx, data)
	})
}

// ProgramPreset uploads one of the built-in songs.
func (s *Service) ProgramPreset(ctx context.Context, tag Tag, name string) error {
	sg, err := song.Preset(name)
	if err != nil {
		return err
	}
	return s.ProgramSong(ctx, tag, song.Encode(sg))
}

// ProgramNotation parses notation and uploads the result. Parse warnings are
// returned even when the upload fails.
func (s *Service) ProgramNotation(ctx context.Context, tag Tag, notation string) ([]song.NotationWarning, error) {
	sg, warnings := song.FromNotation(notation, "custom")
	if sg.Len() == 0 {
		return warnings, fmt.Errorf("notation contains no notes")
	}
	return warnings, s.ProgramSong(ctx, tag, song.Encode(sg))
}

// withTag runs op on an authenticated session with tag while holding its lock.
// Any failure drops the tag's cached mapping.
func (s *Service) withTag(ctx context.Context, tag Tag, opName string, op func(context.Context, *toa.Session) error) error {
	log := s.logger.WithFields(logrus.Fields{"tile": tag.label(), "op": opName})
	if name := groutine.GetName(ctx); name != "" {
		log = log.WithField("goroutine", name)
	}

	if tag.AuthKey == "" {
		return ErrNoAuthKey
	}
	key, err := toa.DecodeAuthKey(tag.AuthKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoAuthKey, err)
	}

	lock, _ := s.locks.GetOrInsert(tag.UUID, &sync.Mutex{})
	if !lock.TryLock() {
		log.Warn("Operation already in progress, skipping")
		return ErrOperationInProgress
	}
	defer lock.Unlock()

	if err := s.run(ctx, tag, key, op, log); err != nil {
		s.invalidate(tag.UUID)
		log.WithError(err).Error("Tile operation failed")
		return err
	}
	return nil
}

func (s *Service) run(ctx context.Context, tag Tag, key []byte, op func(context.Context, *toa.Session) error, log *logrus.Entry) error {
	tile, err := s.resolve(ctx, tag)
	if err != nil {
		return err
	}
	log = log.WithField("address", tile.Address)

	conn, err := s.connect(ctx, tile.Address, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			log.WithError(err).Debug("Disconnect failed")
		}
	}()

	session, err := toa.NewAuthenticator(conn, key, s.toaOptions()...).Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	if err := op(ctx, session); err != nil {
		return fmt.Errorf("%w: %w", ErrOperationFailed, err)
	}
	log.Info("Tile operation complete")
	return nil
}

// resolve looks the tag up through the cache and a normal scan, then once more
// with a forced scan.
func (s *Service) resolve(ctx context.Context, tag Tag) (DiscoveredTile, error) {
	if t, ok := s.FindDevice(tag.UUID, []DiscoveredTile{}); ok {
		return t, nil
	}

	tiles, err := s.Scan(ctx, 0, false)
	if err != nil {
		return DiscoveredTile{}, fmt.Errorf("%w: %w", ErrTagNotReachable, err)
	}
	if t, ok := s.FindDevice(tag.UUID, tiles); ok {
		return t, nil
	}

	s.logger.WithField("tile", tag.label()).Info("Tile not found in cache, forcing BLE scan...")
	tiles, err = s.Scan(ctx, 0, true)
	if err != nil {
		return DiscoveredTile{}, fmt.Errorf("%w: %w", ErrTagNotReachable, err)
	}
	if t, ok := s.FindDevice(tag.UUID, tiles); ok {
		return t, nil
	}
	return DiscoveredTile{}, fmt.Errorf("%w: %s", ErrTagNotReachable, tag.label())
}

func (s *Service) connect(ctx context.Context, address string, log *logrus.Entry) (device.Connection, error) {
	attempts := max(s.cfg.ConnectAttempts, 1)
	opts := &device.ConnectOptions{ConnectTimeout: s.cfg.ConnectTimeout}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := s.connector.Connect(ctx, address, opts)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		log.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("Connect attempt failed")

		if attempt < attempts {
			if err := sleep(ctx, s.cfg.RetryBackoff*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, address, lastErr)
}

func (s *Service) toaOptions() []toa.Option {
	return []toa.Option{
		toa.WithAuthTimeout(s.cfg.AuthTimeout),
		toa.WithExchangeTimeout(s.cfg.ExchangeTimeout),
		toa.WithSettleDelay(s.cfg.SettleDelay),
		toa.PacketDelay(s.cfg.PacketDelay),
		toa.WithLogger(s.logger),
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
