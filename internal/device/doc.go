// Package device defines the transport-neutral Bluetooth Low Energy surface
// used by the Tile protocol engine and service layer.
//
// It contains:
//   - Scanning and advertisement interfaces
//   - Connector/Connection/Characteristic interfaces for GATT access
//   - The connection error taxonomy shared by all transport adapters
//   - UUID normalization helpers
package device
