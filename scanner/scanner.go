package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/device"
	"github.com/srg/tilectl/internal/devicefactory"
)

// ProgressCallback is called when the scan phase changes
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

func (t DeviceEventType) String() string {
	if t == EventNew {
		return "new"
	}
	return "updated"
}

// Entry is the latest advertisement state of one peripheral.
type Entry struct {
	Address     string
	Name        string
	RSSI        int
	Services    []string
	Connectable bool
	IsTile      bool
	LastSeen    time.Time
}

type DeviceEvent struct {
	Type  DeviceEventType
	Entry Entry
}

// eventBufferSize bounds the event history; the oldest events are overwritten.
const eventBufferSize = 256

// Scanner handles BLE device discovery
type Scanner struct {
	devices *hashmap.Map[string, *Entry]
	events  mpmc.RichOverlappedRingBuffer[DeviceEvent]
	logger  *logrus.Logger
	now     func() time.Time

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	TilesOnly       bool
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns default scanning options
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
		TilesOnly:       true,
	}
}

// NewScanner creates a new BLE scanner
func NewScanner(logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		devices: hashmap.New[string, *Entry](),
		events:  mpmc.NewOverlappedRingBuffer[DeviceEvent](eventBufferSize),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Scan performs BLE discovery for opts.Duration (or until ctx ends) and returns
// the devices seen, strongest signal first.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) ([]Entry, error) {
	s.devices = hashmap.New[string, *Entry]()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")

	// Report scanning phase
	progressCallback("Scanning")

	dev, err := devicefactory.ScannerFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()
	err = dev.Scan(ctx, !opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", device.NormalizeError(err))
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")

	// Report processing phase
	progressCallback("Processing results")

	return s.Devices(), nil
}

// Devices returns a snapshot of the last scan's devices, strongest signal first.
func (s *Scanner) Devices() []Entry {
	out := make([]Entry, 0, s.devices.Len())
	s.devices.Range(func(_ string, e *Entry) bool {
		out = append(out, *e)
		return true
	})
	sortByRSSI(out)
	return out
}

// handleAdvertisement updates existing or adds a new device
func (s *Scanner) handleAdvertisement(adv device.Advertisement) {
	opts := s.scanOptions
	if opts == nil {
		return
	}
	addr := adv.Addr()

	prev, existing := s.devices.Get(addr)
	if !existing && !shouldIncludeDevice(adv, opts) {
		return
	}

	entry := &Entry{
		Address:     addr,
		Name:        adv.LocalName(),
		RSSI:        adv.RSSI(),
		Services:    adv.Services(),
		Connectable: adv.Connectable(),
		IsTile:      IsTile(adv),
		LastSeen:    s.now(),
	}
	if existing {
		if entry.Name == "" {
			entry.Name = prev.Name
		}
		entry.IsTile = entry.IsTile || prev.IsTile
	}
	s.devices.Set(addr, entry)

	event := DeviceEvent{Type: EventUpdated, Entry: *entry}
	if !existing {
		s.logger.WithFields(logrus.Fields{
			"device":  entry.Name,
			"address": entry.Address,
			"rssi":    entry.RSSI,
		}).Info("Discovered new device")
		event.Type = EventNew
	}

	if _, err := s.events.EnqueueM(event); err != nil {
		s.logger.WithError(err).Debug("Dropping scan event")
	}
}

// DrainEvents returns and removes buffered discovery events, oldest first.
func (s *Scanner) DrainEvents() []DeviceEvent {
	var out []DeviceEvent
	for !s.events.IsEmpty() {
		ev, err := s.events.Dequeue()
		if err != nil {
			break
		}
		out = append(out, ev)
	}
	return out
}

// shouldIncludeDevice applies to allow/block/tile filters
func shouldIncludeDevice(adv device.Advertisement, opts *ScanOptions) bool {
	addr := adv.Addr()

	for _, blocked := range opts.BlockList {
		if strings.EqualFold(addr, blocked) {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if strings.EqualFold(addr, a) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if opts.TilesOnly && !IsTile(adv) {
		return false
	}

	return true
}

// IsTile recognises a Tile by its FEED/FEEC service in the advertised services
// or service data, or by the local name "Tile".
func IsTile(adv device.Advertisement) bool {
	for _, svc := range adv.Services() {
		if isTileService(svc) {
			return true
		}
	}
	for _, sd := range adv.ServiceData() {
		if isTileService(sd.UUID) {
			return true
		}
	}
	return strings.EqualFold(adv.LocalName(), "tile")
}

func isTileService(uuid string) bool {
	u := strings.ToLower(uuid)
	return strings.Contains(u, "feed") || strings.Contains(u, "feec")
}

func sortByRSSI(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RSSI != entries[j].RSSI {
			return entries[i].RSSI > entries[j].RSSI
		}
		return entries[i].Address < entries[j].Address
	})
}
