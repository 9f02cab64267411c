package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/srg/tilectl/internal/device"
)

// ErrFakeConnect is returned by FakeConnector for injected connect failures.
var ErrFakeConnect = errors.New("fake connect failure")

// FakeConnector hands out FakeTile connections by address.
type FakeConnector struct {
	// Gate, when set, blocks every Connect until it is closed or ctx ends.
	Gate chan struct{}
	// GateAddress limits Gate to connects to this address.
	GateAddress string
	// Entered receives the address of each Connect call that reached the gate.
	Entered chan string

	mu       sync.Mutex
	tiles    map[string]*FakeTile
	failures int
	calls    []string
}

func NewFakeConnector(tiles ...*FakeTile) *FakeConnector {
	c := &FakeConnector{tiles: make(map[string]*FakeTile)}
	for _, t := range tiles {
		c.AddTile(t)
	}
	return c
}

func (c *FakeConnector) AddTile(t *FakeTile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles[strings.ToUpper(t.Addr)] = t
}

// FailNext makes the next n connects fail with ErrFakeConnect.
func (c *FakeConnector) FailNext(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = n
}

// Calls returns the addresses of every Connect call, in order.
func (c *FakeConnector) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *FakeConnector) Connect(ctx context.Context, address string, _ *device.ConnectOptions) (device.Connection, error) {
	c.mu.Lock()
	c.calls = append(c.calls, address)
	c.mu.Unlock()

	if c.Gate != nil && (c.GateAddress == "" || strings.EqualFold(c.GateAddress, address)) {
		if c.Entered != nil {
			c.Entered <- address
		}
		select {
		case <-c.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return nil, ErrFakeConnect
	}
	t, ok := c.tiles[strings.ToUpper(address)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "device", UUIDs: []string{address}}
	}
	t.Reset()
	return t, nil
}

// FakeScanner replays a fixed set of advertisements on every scan.
type FakeScanner struct {
	mu             sync.Mutex
	advertisements []device.Advertisement
	err            error
	waitForContext bool
	scans          int
}

func NewFakeScanner(advs ...device.Advertisement) *FakeScanner {
	return &FakeScanner{advertisements: advs}
}

func (s *FakeScanner) SetAdvertisements(advs ...device.Advertisement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advertisements = advs
}

// SetError makes subsequent scans fail before any advertisement is delivered.
func (s *FakeScanner) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// WaitForContext keeps Scan running until its context ends, like a real radio.
func (s *FakeScanner) WaitForContext(wait bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitForContext = wait
}

func (s *FakeScanner) Scans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans
}

func (s *FakeScanner) Scan(ctx context.Context, _ bool, handler func(device.Advertisement)) error {
	s.mu.Lock()
	s.scans++
	advs := append([]device.Advertisement(nil), s.advertisements...)
	err, wait := s.err, s.waitForContext
	s.mu.Unlock()

	if err != nil {
		return err
	}
	for _, adv := range advs {
		handler(adv)
	}
	if wait {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}
