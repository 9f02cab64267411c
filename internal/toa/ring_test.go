package toa_test

import (
	"context"
	"testing"
	"time"

	"github.com/srg/tilectl/internal/toa"
	"github.com/stretchr/testify/assert"
)

func TestParseVolume(t *testing.T) {
	tests := []struct {
		input string
		want  toa.Volume
	}{
		{"low", toa.VolumeLow},
		{"LOW", toa.VolumeLow},
		{"med", toa.VolumeMedium},
		{"medium", toa.VolumeMedium},
		{" High ", toa.VolumeHigh},
		{"auto", toa.VolumeAuto},
		{"loud", toa.VolumeMedium},
		{"", toa.VolumeMedium},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, toa.ParseVolume(tt.input))
		})
	}
}

func TestRingPayload(t *testing.T) {
	tests := []struct {
		name string
		req  toa.RingRequest
		want []byte
	}{
		{"medium default song", toa.RingRequest{Volume: toa.VolumeMedium, Duration: 5}, []byte{2, 1, 2, 5}},
		{"nil volume is medium", toa.RingRequest{Duration: 5}, []byte{2, 1, 2, 5}},
		{"low", toa.RingRequest{Volume: toa.VolumeLow, Duration: 3}, []byte{2, 1, 1, 3}},
		{"auto three-byte volume", toa.RingRequest{Volume: toa.VolumeAuto, Duration: 10}, []byte{2, 0x16, 3, 3, 10}},
		{"song id prefix", toa.RingRequest{Volume: toa.VolumeHigh, Duration: 5, SongID: 7}, []byte{7, 2, 1, 3, 5}},
		{"duration clamped high", toa.RingRequest{Volume: toa.VolumeHigh, Duration: 99}, []byte{2, 1, 3, 30}},
		{"duration clamped low", toa.RingRequest{Volume: toa.VolumeHigh, Duration: 0}, []byte{2, 1, 3, 1}},
		{"negative duration", toa.RingRequest{Volume: toa.VolumeHigh, Duration: -4}, []byte{2, 1, 3, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toa.RingPayload(tt.req))
		})
	}
}

func TestRingResult_String(t *testing.T) {
	assert.Equal(t, "acknowledged", toa.RingAcknowledged.String())
	assert.Equal(t, "responded", toa.RingResponded.String())
	assert.Equal(t, "unconfirmed", toa.RingUnconfirmed.String())
}

func (s *SessionSuite) TestRingAcknowledged() {
	// GOAL: Verify a ring is sent signed on the channel and a play-ok reply is acknowledged
	//
	// TEST SCENARIO: Ring high for 10s → tag receives [2 1 3 10] and replies [2] → RingAcknowledged

	session := s.mustAuthenticate()

	result, err := session.Ring(context.Background(), toa.RingRequest{Volume: toa.VolumeHigh, Duration: 10})

	s.Require().NoError(err)
	s.Equal(toa.RingAcknowledged, result)
	s.Equal([][]byte{{2, 1, 3, 10}}, s.tile.Rings())
	s.Equal(2, s.tile.SignedPackets(), "ring MUST be signed with the next nonce")
	s.Zero(s.tile.BadSignatures())
}

func (s *SessionSuite) TestRingWithSongID() {
	session := s.mustAuthenticate()

	result, err := session.Ring(context.Background(), toa.RingRequest{Volume: toa.VolumeMedium, Duration: 10, SongID: 3})

	s.Require().NoError(err)
	s.Equal(toa.RingAcknowledged, result, "a song id prefix MUST still be answered")
	s.Equal([][]byte{{3, 2, 1, 2, 10}}, s.tile.Rings())
}

func (s *SessionSuite) TestRingResponded() {
	s.tile.RingReply = []byte{0x09, 0x01}
	session := s.mustAuthenticate()

	result, err := session.Ring(context.Background(), toa.RingRequest{Duration: 5})

	s.Require().NoError(err)
	s.Equal(toa.RingResponded, result)
}

func (s *SessionSuite) TestRingUnconfirmedIsNotAnError() {
	// GOAL: Verify a silent tag still counts as success
	//
	// TEST SCENARIO: Tag never answers the ring → RingUnconfirmed with a nil error and a warning

	s.tile.RingReply = nil
	session := s.mustAuthenticate(toa.WithExchangeTimeout(100 * time.Millisecond))

	result, err := session.Ring(context.Background(), toa.RingRequest{Duration: 5})

	s.NoError(err)
	s.Equal(toa.RingUnconfirmed, result)
	s.Len(s.tile.Rings(), 1)
	s.Contains(s.helper.Logs(), "may still be playing")
}

func (s *SessionSuite) TestRepeatedRingsAdvanceNonce() {
	session := s.mustAuthenticate()

	for i := 0; i < 3; i++ {
		_, err := session.Ring(context.Background(), toa.RingRequest{Duration: 1})
		s.Require().NoError(err)
	}

	s.Equal(4, s.tile.SignedPackets())
	s.Zero(s.tile.BadSignatures(), "every packet MUST use a fresh nonce")
}

func (s *SessionSuite) TestRingWriteFailure() {
	session := s.mustAuthenticate()
	s.tile.WriteErr = assert.AnError

	_, err := session.Ring(context.Background(), toa.RingRequest{Duration: 1})

	s.ErrorIs(err, assert.AnError)
}
