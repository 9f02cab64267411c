package tilesvc

import (
	"sort"
	"strings"
	"time"
)

// DiscoveredTile is one Tile seen by the last scan.
type DiscoveredTile struct {
	Address  string    `json:"address" yaml:"address"`
	Name     string    `json:"name" yaml:"name"`
	RSSI     int       `json:"rssi" yaml:"rssi"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen"`
}

// Mapping is a cached tag UUID → address resolution.
type Mapping struct {
	Address string    `yaml:"address"`
	Seen    time.Time `yaml:"seen"`
}

// CacheSnapshot is the persistable form of the cache, for processes that do
// not live as long as the TTLs.
type CacheSnapshot struct {
	Mappings   map[string]Mapping `yaml:"mappings"`
	Devices    []DiscoveredTile   `yaml:"devices"`
	Discovered []DiscoveredTile   `yaml:"discovered"`
	LastScan   time.Time          `yaml:"last_scan"`
}

// CacheStats summarizes the resolution cache.
type CacheStats struct {
	Mappings        int        `json:"uuid_mappings"`
	CachedDevices   int        `json:"cached_devices"`
	DiscoveredTiles int        `json:"discovered_tiles"`
	LastScan        *time.Time `json:"last_scan"`
	Stale           bool       `json:"scan_stale"`
}

// bleCache holds UUID mappings, per-address scan results and the tile list of
// the last scan. It is not safe for concurrent use; Service guards it.
type bleCache struct {
	mappings   map[string]Mapping
	devices    map[string]DiscoveredTile
	discovered []DiscoveredTile
	lastScan   time.Time
}

func newBLECache() *bleCache {
	return &bleCache{
		mappings: make(map[string]Mapping),
		devices:  make(map[string]DiscoveredTile),
	}
}

func addressKey(address string) string {
	return strings.ToUpper(address)
}

func (c *bleCache) storeScan(tiles []DiscoveredTile, at time.Time) {
	for _, t := range tiles {
		c.devices[addressKey(t.Address)] = t
	}
	c.discovered = tiles
	c.lastScan = at
}

// device returns the cached scan result for address while it is younger than ttl.
func (c *bleCache) device(address string, now time.Time, ttl time.Duration) (DiscoveredTile, bool) {
	t, ok := c.devices[addressKey(address)]
	if !ok || now.Sub(t.LastSeen) >= ttl {
		return DiscoveredTile{}, false
	}
	return t, true
}

// mapping returns the address cached for uuid while it is younger than ttl.
func (c *bleCache) mapping(uuid string, now time.Time, ttl time.Duration) (string, bool) {
	e, ok := c.mappings[uuid]
	if !ok || now.Sub(e.Seen) >= ttl {
		return "", false
	}
	return e.Address, true
}

func (c *bleCache) snapshot() CacheSnapshot {
	snap := CacheSnapshot{
		Mappings:   make(map[string]Mapping, len(c.mappings)),
		Devices:    make([]DiscoveredTile, 0, len(c.devices)),
		Discovered: append([]DiscoveredTile(nil), c.discovered...),
		LastScan:   c.lastScan,
	}
	for k, v := range c.mappings {
		snap.Mappings[k] = v
	}
	for _, d := range c.devices {
		snap.Devices = append(snap.Devices, d)
	}
	sort.Slice(snap.Devices, func(i, j int) bool { return snap.Devices[i].Address < snap.Devices[j].Address })
	return snap
}

func cacheFromSnapshot(snap CacheSnapshot) *bleCache {
	c := newBLECache()
	for k, v := range snap.Mappings {
		c.mappings[k] = v
	}
	for _, d := range snap.Devices {
		c.devices[addressKey(d.Address)] = d
	}
	c.discovered = append([]DiscoveredTile(nil), snap.Discovered...)
	c.lastScan = snap.LastScan
	return c
}

func (c *bleCache) stale(now time.Time, ttl time.Duration) bool {
	return c.lastScan.IsZero() || now.Sub(c.lastScan) > ttl
}

func (c *bleCache) stats(now time.Time, ttl time.Duration) CacheStats {
	st := CacheStats{
		Mappings:        len(c.mappings),
		CachedDevices:   len(c.devices),
		DiscoveredTiles: len(c.discovered),
		Stale:           c.stale(now, ttl),
	}
	if !c.lastScan.IsZero() {
		last := c.lastScan
		st.LastScan = &last
	}
	return st
}

// shortID is the first 12 lowercase hex characters of a tag UUID or address,
// separators removed.
func shortID(s string) string {
	s = strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(s))
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

// matchAddress reports whether a tag UUID and a MAC address name the same device.
// Either may be a prefix of the other.
func matchAddress(uuid, address string) bool {
	u, a := shortID(uuid), shortID(address)
	if u == "" || a == "" {
		return false
	}
	return strings.HasPrefix(a, u) || strings.HasPrefix(u, a)
}
