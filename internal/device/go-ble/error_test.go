package goble

import (
	"errors"
	"testing"

	"github.com/srg/tilectl/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"darwin powered off", errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?"), device.ErrBluetoothOff},
		{"linux hci init", errors.New("can't init hci: no devices available"), device.ErrBluetoothOff},
		{"link dropped", errors.New("peripheral Disconnected"), device.ErrNotConnected},
		{"generic not connected", errors.New("device not connected"), device.ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, NormalizeError(tt.in), tt.want)
		})
	}

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, NormalizeError(nil))
	})
}
