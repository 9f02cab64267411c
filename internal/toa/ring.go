package toa

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Volume is the encoded volume selector of a ring command.
type Volume []byte

var (
	VolumeLow    = Volume{0x01, 0x01}
	VolumeMedium = Volume{0x01, 0x02}
	VolumeHigh   = Volume{0x01, 0x03}
	VolumeAuto   = Volume{0x16, 0x03, 0x03}
)

// ParseVolume maps low, med/medium, high and auto (any case). Anything else is medium.
func ParseVolume(s string) Volume {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return VolumeLow
	case "high":
		return VolumeHigh
	case "auto":
		return VolumeAuto
	default:
		return VolumeMedium
	}
}

const (
	MinRingDuration     = 1
	MaxRingDuration     = 30
	DefaultRingDuration = 5
)

// RingRequest describes one ring. A zero SongID plays the default song.
type RingRequest struct {
	Volume   Volume
	Duration int // seconds, clamped to [1,30]
	SongID   byte
}

// RingResult says how much evidence of the ring came back.
type RingResult int

const (
	// RingAcknowledged is a play-ok reply.
	RingAcknowledged RingResult = iota
	// RingResponded is any other reply on the song response prefix.
	RingResponded
	// RingUnconfirmed means no reply arrived in time. The tag usually rings anyway.
	RingUnconfirmed
)

func (r RingResult) String() string {
	switch r {
	case RingAcknowledged:
		return "acknowledged"
	case RingResponded:
		return "responded"
	case RingUnconfirmed:
		return "unconfirmed"
	default:
		return fmt.Sprintf("ring-result(%d)", int(r))
	}
}

// RingPayload builds [songID?] 02 volume... duration.
func RingPayload(req RingRequest) []byte {
	vol := req.Volume
	if len(vol) == 0 {
		vol = VolumeMedium
	}
	duration := max(MinRingDuration, min(req.Duration, MaxRingDuration))

	payload := make([]byte, 0, 2+len(vol)+1)
	if req.SongID > 0 {
		payload = append(payload, req.SongID)
	}
	payload = append(payload, songPlay)
	payload = append(payload, vol...)
	return append(payload, byte(duration))
}

// Ring plays a song on the tag. Any reply counts as success and so does a
// missing reply; only transport failures are errors.
func (s *Session) Ring(ctx context.Context, req RingRequest) (RingResult, error) {
	if !s.Authenticated() {
		return 0, ErrNotAuthenticated
	}

	payload := RingPayload(req)
	s.logger.WithFields(logrus.Fields{
		"payload": hex.EncodeToString(payload),
		"song_id": req.SongID,
	}).Info("Sending ring")

	r, err := s.request(ctx, PrefixSong, payload, PrefixSongResponse)
	var timeout *StepTimeoutError
	switch {
	case errors.As(err, &timeout):
		s.logger.Warn("Ring command timeout (may still be playing)")
		return RingUnconfirmed, nil
	case err != nil:
		return 0, fmt.Errorf("ring: %w", err)
	}

	if len(r.Data) > 0 && r.Data[0] == songPlay {
		s.logger.Info("Ring acknowledged")
		return RingAcknowledged, nil
	}
	s.logger.WithField("data", hex.EncodeToString(r.Data)).Debug("Ring response")
	return RingResponded, nil
}
