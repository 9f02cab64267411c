package goble

import (
	"fmt"
	"time"

	"github.com/go-ble/ble"
)

// DefaultReadTimeout applies to Read calls given a zero timeout
const DefaultReadTimeout = 5 * time.Second

// Characteristic wraps a discovered ble.Characteristic. It implements device.Characteristic.
type Characteristic struct {
	uuid    string
	bleChar *ble.Characteristic
	conn    *Connection
}

func (c *Characteristic) UUID() string {
	return c.uuid
}

type ioResult struct {
	data []byte
	err  error
}

// Read reads the current value with a timeout so an unresponsive peripheral cannot block forever.
func (c *Characteristic) Read(timeout time.Duration) ([]byte, error) {
	client, err := c.conn.liveClient()
	if err != nil {
		return nil, fmt.Errorf("read characteristic %s: %w", c.uuid, err)
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	resultCh := make(chan ioResult, 1)
	go func() {
		data, err := client.ReadCharacteristic(c.bleChar)
		resultCh <- ioResult{data: data, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(r.err))
		}
		return r.data, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout reading characteristic %s after %v", c.uuid, timeout)
	}
}

// Write writes data; withResponse=false issues a write command (no ATT response).
func (c *Characteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	client, err := c.conn.liveClient()
	if err != nil {
		return fmt.Errorf("write characteristic %s: %w", c.uuid, err)
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	resultCh := make(chan ioResult, 1)
	go func() {
		resultCh <- ioResult{err: client.WriteCharacteristic(c.bleChar, data, !withResponse)}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return fmt.Errorf("failed to write characteristic %s: %w", c.uuid, NormalizeError(r.err))
		}
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout writing characteristic %s after %v", c.uuid, timeout)
	}
}

// Subscribe enables notifications and forwards a private copy of each payload to handler.
func (c *Characteristic) Subscribe(handler func(data []byte)) error {
	client, err := c.conn.liveClient()
	if err != nil {
		return fmt.Errorf("subscribe characteristic %s: %w", c.uuid, err)
	}

	err = client.Subscribe(c.bleChar, false, func(req []byte) {
		data := make([]byte, len(req))
		copy(data, req)
		handler(data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}
