package device_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/srg/tilectl/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *device.NotFoundError
		expected string
	}{
		{
			name:     "resource only",
			err:      &device.NotFoundError{Resource: "device"},
			expected: "device not found",
		},
		{
			name:     "single identifier",
			err:      &device.NotFoundError{Resource: "device", UUIDs: []string{"cd46a6a4ddad54f0"}},
			expected: `device "cd46a6a4ddad54f0" not found`,
		},
		{
			name:     "characteristic in service",
			err:      &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"feed", "9d410018"}},
			expected: `characteristic "9d410018" not found in service "feed"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConnectionError_Is(t *testing.T) {
	t.Run("matches sentinel by state", func(t *testing.T) {
		err := &device.ConnectionError{State: device.NotConnected, Msg: "link dropped"}
		assert.ErrorIs(t, err, device.ErrNotConnected)
		assert.NotErrorIs(t, err, device.ErrAlreadyConnected)
	})

	t.Run("survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("ring failed: %w", device.ErrNotConnected)
		assert.ErrorIs(t, err, device.ErrNotConnected)
		assert.True(t, device.IsConnectionState(err, device.NotConnected))
		assert.False(t, device.IsConnectionState(err, device.BluetoothOff))
	})

	t.Run("nil receiver", func(t *testing.T) {
		var err *device.ConnectionError
		assert.Equal(t, "<nil>", err.Error())
		assert.False(t, err.Is(device.ErrNotConnected))
	})
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name  string
		input error
		want  error
	}{
		{"bluetooth off", errors.New("Bluetooth is turned off"), device.ErrBluetoothOff},
		{"not connected", errors.New("write: device not connected"), device.ErrNotConnected},
		{"already connected", errors.New("Device already connected"), device.ErrAlreadyConnected},
		{"not initialized", errors.New("connection is not initialized"), device.ErrNotInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := device.NormalizeError(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.input.Error(), "original message MUST be preserved")
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		in := errors.New("att: invalid handle")
		assert.Same(t, in, device.NormalizeError(in))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, device.NormalizeError(nil))
	})
}
