package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "16-bit service", input: "FEED", expected: "feed"},
		{name: "16-bit with 0x prefix", input: "0xFEEC", expected: "feec"},
		{name: "SIG base form collapses", input: "0000feed-0000-1000-8000-00805f9b34fb", expected: "feed"},
		{name: "SIG base form uppercase", input: "0000FEEC-0000-1000-8000-00805F9B34FB", expected: "feec"},
		{name: "SIG base form without dashes", input: "0000feed00001000800000805f9b34fb", expected: "feed"},
		{name: "vendor 128-bit stays long", input: "9d410018-35d6-f4dd-ba60-e7bd8dc491c0", expected: "9d41001835d6f4ddba60e7bd8dc491c0"},
		{name: "wrong prefix not shortened", input: "AA00FEED-0000-1000-8000-00805f9b34fb", expected: "aa00feed00001000800000805f9b34fb"},
		{name: "too long not shortened", input: "0000feed00001000800000805f9b34fb00", expected: "0000feed00001000800000805f9b34fb00"},
		{name: "surrounding whitespace", input: "  feed ", expected: "feed"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeUUID(tt.input))
		})
	}
}

func TestNormalizeUUIDs(t *testing.T) {
	input := []string{
		"0xfeed",
		"0000feec-0000-1000-8000-00805f9b34fb",
		"9d410019-35d6-f4dd-ba60-e7bd8dc491c0",
	}
	expected := []string{
		"feed",
		"feec",
		"9d41001935d6f4ddba60e7bd8dc491c0",
	}

	assert.Equal(t, expected, NormalizeUUIDs(input))
	assert.Nil(t, NormalizeUUIDs(nil))
}

func TestShortenUUID(t *testing.T) {
	assert.Equal(t, "cd46a6a4", ShortenUUID("cd46a6a4ddad54f0"))
	assert.Equal(t, "feed", ShortenUUID("feed"))
}

func TestValidateUUID(t *testing.T) {
	t.Run("normalizes valid input", func(t *testing.T) {
		got, err := ValidateUUID("FEED", "9d410018-35d6-f4dd-ba60-e7bd8dc491c0")
		require.NoError(t, err)
		assert.Equal(t, []string{"feed", "9d41001835d6f4ddba60e7bd8dc491c0"}, got)
	})

	t.Run("requires at least one", func(t *testing.T) {
		_, err := ValidateUUID()
		assert.Error(t, err)
	})

	t.Run("rejects empty entry", func(t *testing.T) {
		_, err := ValidateUUID("feed", "")
		assert.ErrorContains(t, err, "index 1")
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ValidateUUID("tile")
		assert.ErrorContains(t, err, "invalid UUID format")
	})
}
