package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/tilectl/internal/device"
)

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement
type BLEAdvertisement struct {
	adv ble.Advertisement
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string        { return a.adv.LocalName() }
func (a *BLEAdvertisement) ManufacturerData() []byte { return a.adv.ManufacturerData() }
func (a *BLEAdvertisement) TxPowerLevel() int        { return a.adv.TxPowerLevel() }
func (a *BLEAdvertisement) Connectable() bool        { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int                { return a.adv.RSSI() }
func (a *BLEAdvertisement) Addr() string             { return a.adv.Addr().String() }

// ServiceData returns service data keyed by normalized service UUID
func (a *BLEAdvertisement) ServiceData() []struct {
	UUID string
	Data []byte
} {
	sd := a.adv.ServiceData()
	result := make([]struct {
		UUID string
		Data []byte
	}, len(sd))
	for i, entry := range sd {
		result[i].UUID = device.NormalizeUUID(entry.UUID.String())
		result[i].Data = entry.Data
	}
	return result
}

// Services returns advertised and overflow service UUIDs, normalized
func (a *BLEAdvertisement) Services() []string {
	result := make([]string, 0, len(a.adv.Services())+len(a.adv.OverflowService()))
	for _, u := range a.adv.Services() {
		result = append(result, device.NormalizeUUID(u.String()))
	}
	for _, u := range a.adv.OverflowService() {
		result = append(result, device.NormalizeUUID(u.String()))
	}
	return result
}
