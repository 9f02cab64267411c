package testutils

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/srg/tilectl/internal/device"
)

// FakeAdvertisement is a static device.Advertisement.
type FakeAdvertisement struct {
	Name          string
	Address       string
	Rssi          int
	ServiceIDs    []string
	ManufData     []byte
	SvcData       map[string][]byte
	TxPower       int
	IsConnectable bool
}

func (a *FakeAdvertisement) LocalName() string        { return a.Name }
func (a *FakeAdvertisement) ManufacturerData() []byte { return a.ManufData }
func (a *FakeAdvertisement) Services() []string       { return a.ServiceIDs }
func (a *FakeAdvertisement) TxPowerLevel() int        { return a.TxPower }
func (a *FakeAdvertisement) Connectable() bool        { return a.IsConnectable }
func (a *FakeAdvertisement) RSSI() int                { return a.Rssi }
func (a *FakeAdvertisement) Addr() string             { return a.Address }

// ServiceData returns entries ordered by UUID.
func (a *FakeAdvertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	keys := make([]string, 0, len(a.SvcData))
	for k := range a.SvcData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]struct {
		UUID string
		Data []byte
	}, 0, len(keys))
	for _, k := range keys {
		out = append(out, struct {
			UUID string
			Data []byte
		}{UUID: k, Data: a.SvcData[k]})
	}
	return out
}

// AdvertisementBuilder builds fake BLE advertisements with a fluent API.
type AdvertisementBuilder struct {
	adv FakeAdvertisement
}

// NewAdvertisementBuilder starts a connectable advertisement with no services.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{adv: FakeAdvertisement{
		SvcData:       make(map[string][]byte),
		IsConnectable: true,
	}}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.Name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.Address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.Rssi = rssi
	return b
}

// WithServices adds service UUIDs in short ("FEED") or full form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.adv.ServiceIDs = append(b.adv.ServiceIDs, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.ManufData = data
	return b
}

func (b *AdvertisementBuilder) WithServiceData(uuid string, data []byte) *AdvertisementBuilder {
	b.adv.SvcData[uuid] = data
	return b
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.adv.TxPower = power
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.IsConnectable = c
	return b
}

// FromJSON fills the builder from a JSON object. Panics on invalid JSON as it
// is meant for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	var data struct {
		Name        *string           `json:"name"`
		Address     *string           `json:"address"`
		RSSI        *int              `json:"rssi"`
		Services    []string          `json:"services"`
		ServiceData map[string][]byte `json:"serviceData"`
		TxPower     *int              `json:"txPower"`
		Connectable *bool             `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}

	if data.Name != nil {
		b.WithName(*data.Name)
	}
	if data.Address != nil {
		b.WithAddress(*data.Address)
	}
	if data.RSSI != nil {
		b.WithRSSI(*data.RSSI)
	}
	b.WithServices(data.Services...)
	for k, v := range data.ServiceData {
		b.WithServiceData(k, v)
	}
	if data.TxPower != nil {
		b.WithTxPower(*data.TxPower)
	}
	if data.Connectable != nil {
		b.WithConnectable(*data.Connectable)
	}
	return b
}

// Build returns a copy so the builder can be reused.
func (b *AdvertisementBuilder) Build() device.Advertisement {
	adv := b.adv
	adv.ServiceIDs = append([]string(nil), b.adv.ServiceIDs...)
	adv.SvcData = make(map[string][]byte, len(b.adv.SvcData))
	for k, v := range b.adv.SvcData {
		adv.SvcData[k] = v
	}
	return &adv
}

// NewTileAdvertisement is a typical Tile advertisement: FEED service, no name.
func NewTileAdvertisement(address string, rssi int) device.Advertisement {
	return NewAdvertisementBuilder().
		WithAddress(address).
		WithRSSI(rssi).
		WithServices("feed").
		Build()
}
