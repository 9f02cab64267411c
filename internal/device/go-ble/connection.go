package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/device"
	"github.com/srg/tilectl/internal/groutine"
)

// DefaultConnectTimeout bounds ble.Dial when ConnectOptions leaves it unset.
const DefaultConnectTimeout = 45 * time.Second

// dialMu serializes Dial calls: go-ble dials through a process-wide default device.
var dialMu sync.Mutex

// Connector dials peripherals through go-ble. It implements device.Connector.
type Connector struct {
	logger *logrus.Logger
}

// NewConnector creates a go-ble backed connector
func NewConnector(logger *logrus.Logger) *Connector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Connector{logger: logger}
}

// Connect dials the peripheral, discovers its GATT profile and returns a live connection.
func (c *Connector) Connect(ctx context.Context, address string, opts *device.ConnectOptions) (device.Connection, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}

	timeout := DefaultConnectTimeout
	if opts != nil && opts.ConnectTimeout > 0 {
		timeout = opts.ConnectTimeout
	}

	c.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": timeout,
	}).Info("Connecting to BLE device...")

	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", NormalizeError(err))
	}

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialMu.Lock()
	ble.SetDefaultDevice(dev)
	client, err := ble.Dial(connCtx, ble.NewAddr(address))
	dialMu.Unlock()
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Warn("Failed to dial BLE device")
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			c.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	conn := newConnection(address, client, profile, c.logger)

	groutine.Go(context.Background(), "ble-connection-monitor", func(context.Context) {
		select {
		case <-client.Disconnected():
			conn.markDisconnected()
		case <-conn.done:
		}
	})

	c.logger.WithFields(logrus.Fields{
		"address":         address,
		"services":        len(profile.Services),
		"characteristics": len(conn.chars),
	}).Info("BLE device connected successfully")
	return conn, nil
}

// Connection is a live go-ble client session. It implements device.Connection.
type Connection struct {
	address string
	client  ble.Client
	logger  *logrus.Logger

	mu        sync.RWMutex
	connected bool
	chars     map[string]*Characteristic // keyed by normalized service + "/" + char UUID
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(address string, client ble.Client, profile *ble.Profile, logger *logrus.Logger) *Connection {
	conn := &Connection{
		address:   address,
		client:    client,
		logger:    logger,
		connected: true,
		chars:     make(map[string]*Characteristic),
		done:      make(chan struct{}),
	}

	for _, svc := range profile.Services {
		svcUUID := device.NormalizeUUID(svc.UUID.String())
		for _, ch := range svc.Characteristics {
			charUUID := device.NormalizeUUID(ch.UUID.String())
			logger.WithFields(logrus.Fields{
				"service_uuid": svcUUID,
				"char_uuid":    charUUID,
			}).Debug("Found characteristic")
			conn.chars[charKey(svcUUID, charUUID)] = &Characteristic{
				uuid:    charUUID,
				bleChar: ch,
				conn:    conn,
			}
		}
	}
	return conn
}

func charKey(service, char string) string {
	return service + "/" + char
}

func (c *Connection) Address() string {
	return c.address
}

// GetCharacteristic retrieves a characteristic by service and characteristic UUID.
func (c *Connection) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ch, ok := c.chars[charKey(device.NormalizeUUID(service), device.NormalizeUUID(uuid))]
	if !ok {
		return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	}
	return ch, nil
}

// liveClient returns the client if the connection is still up
func (c *Connection) liveClient() (ble.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return nil, device.ErrNotConnected
	}
	return c.client, nil
}

func (c *Connection) markDisconnected() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasConnected {
		c.logger.WithField("address", c.address).Warn("Peripheral reported disconnection")
	}
	c.closeOnce.Do(func() { close(c.done) })
}

// Disconnect drops subscriptions and cancels the link. Safe to call more than once.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.closeOnce.Do(func() { close(c.done) })
		return nil
	}
	c.connected = false
	client := c.client
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })

	if err := client.ClearSubscriptions(); err != nil {
		c.logger.WithError(err).Debug("Failed to clear subscriptions during disconnect")
	}

	err := client.CancelConnection()
	if err != nil {
		c.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	c.logger.WithField("address", c.address).Info("BLE device disconnected successfully")
	return nil
}
