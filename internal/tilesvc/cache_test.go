package tilesvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, "c452338d1e0a", shortID("C4:52:33:8D:1E:0A"))
	assert.Equal(t, "c452338d1e0a", shortID("c452338d-1e0a-4b1c-9d2e-000000000000"))
	assert.Equal(t, "abc", shortID("ABC"))
	assert.Equal(t, "", shortID(""))
}

func TestMatchAddress(t *testing.T) {
	tests := []struct {
		name    string
		uuid    string
		address string
		want    bool
	}{
		{"full match", "c452338d1e0a", "C4:52:33:8D:1E:0A", true},
		{"uuid is address prefix", "c45233", "C4:52:33:8D:1E:0A", true},
		{"address is uuid prefix", "c452338d1e0a99ff", "C4:52:33:8D:1E:0A", true},
		{"dashed uuid", "C452338D-1E0A-0000-0000-000000000000", "c4:52:33:8d:1e:0a", true},
		{"different device", "e17f2011ab03", "C4:52:33:8D:1E:0A", false},
		{"empty uuid", "", "C4:52:33:8D:1E:0A", false},
		{"empty address", "c452338d1e0a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchAddress(tt.uuid, tt.address))
		})
	}
}

func TestBLECache(t *testing.T) {
	// GOAL: Verify both TTLs and the stats view of the cache
	//
	// TEST SCENARIO: Store a scan and a mapping, then look them up before and after their TTLs

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newBLECache()

	st := c.stats(t0, time.Minute)
	assert.True(t, st.Stale, "an empty cache MUST be stale")
	assert.Nil(t, st.LastScan)

	tile := DiscoveredTile{Address: "c4:52:33:8d:1e:0a", Name: "Tile", RSSI: -50, LastSeen: t0}
	c.storeScan([]DiscoveredTile{tile}, t0)
	c.mappings["c452338d1e0a"] = Mapping{Address: tile.Address, Seen: t0}

	got, ok := c.device("C4:52:33:8D:1E:0A", t0.Add(30*time.Second), time.Minute)
	assert.True(t, ok, "device lookup MUST ignore address case")
	assert.Equal(t, tile, got)

	_, ok = c.device(tile.Address, t0.Add(time.Minute), time.Minute)
	assert.False(t, ok, "device MUST expire at its TTL")

	addr, ok := c.mapping("c452338d1e0a", t0.Add(59*time.Minute), time.Hour)
	assert.True(t, ok)
	assert.Equal(t, tile.Address, addr)

	_, ok = c.mapping("c452338d1e0a", t0.Add(time.Hour), time.Hour)
	assert.False(t, ok, "mapping MUST expire at its TTL")

	st = c.stats(t0.Add(10*time.Second), time.Minute)
	assert.Equal(t, 1, st.Mappings)
	assert.Equal(t, 1, st.CachedDevices)
	assert.Equal(t, 1, st.DiscoveredTiles)
	assert.False(t, st.Stale)
	if assert.NotNil(t, st.LastScan) {
		assert.Equal(t, t0, *st.LastScan)
	}

	assert.True(t, c.stats(t0.Add(61*time.Second), time.Minute).Stale)
}
