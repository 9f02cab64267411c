// Package devicefactory holds the overridable constructors for BLE transport objects.
// Production code reaches the radio only through these variables so tests can swap in fakes.
package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/device"
	goble "github.com/srg/tilectl/internal/device/go-ble"
)

// ScannerFactory creates a device.ScanningDevice for BLE scanning operations.
var ScannerFactory = func() (device.ScanningDevice, error) {
	return goble.NewScanner()
}

// ConnectorFactory creates the device.Connector used to open GATT sessions.
var ConnectorFactory = func(logger *logrus.Logger) device.Connector {
	return goble.NewConnector(logger)
}
