package toa_test

import (
	"context"
	"testing"
	"time"

	"github.com/srg/tilectl/internal/device"
	"github.com/srg/tilectl/internal/testutils"
	"github.com/srg/tilectl/internal/toa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// SessionSuite runs the handshake and commands against a FakeTile that
// verifies every channel signature with the real key schedule.
type SessionSuite struct {
	suite.Suite
	helper *testutils.TestHelper
	tile   *testutils.FakeTile
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.tile = testutils.NewFakeTile("C4:52:33:8D:1E:0A")
}

func (s *SessionSuite) authenticate(opts ...toa.Option) (*toa.Session, error) {
	base := []toa.Option{
		toa.WithSettleDelay(0),
		toa.WithExchangeTimeout(200 * time.Millisecond),
		toa.WithAuthTimeout(2 * time.Second),
		toa.PacketDelay(0),
		toa.WithLogger(s.helper.Logger),
	}
	return toa.NewAuthenticator(s.tile, testutils.DefaultAuthKey, append(base, opts...)...).
		Authenticate(context.Background())
}

func (s *SessionSuite) mustAuthenticate(opts ...toa.Option) *toa.Session {
	session, err := s.authenticate(opts...)
	s.Require().NoError(err, "handshake MUST succeed")
	return session
}

// prefixes returns the TOA prefix of every written packet.
func prefixes(written [][]byte) []byte {
	out := make([]byte, 0, len(written))
	for _, pkt := range written {
		if pkt[0] == 0 {
			out = append(out, pkt[5])
		} else {
			out = append(out, pkt[1])
		}
	}
	return out
}

func (s *SessionSuite) TestHandshakeSuccess() {
	// GOAL: Verify the full handshake reaches READY and records everything the tag reported
	//
	// TEST SCENARIO: Tag answers TDI, challenge with 21, opens channel 3 → session is ready with TDI info and READY fields

	session := s.mustAuthenticate()

	s.True(session.Authenticated())
	s.Equal(toa.StateReady, session.State())
	s.Equal(toa.TileInfo{
		TileID:   "cd46a6a4ddad54f0",
		Firmware: "01.12.14.0",
		Model:    "T1",
		Hardware: "17.03",
	}, session.Info())
	s.Equal(20, session.MaxPayload())
	s.Equal([]byte{1, 2, 3}, session.Features())
	s.Equal(uint32(42), session.NonceB())
	s.Equal(byte(3), session.Channel())
	s.Equal(s.tile.SessionTag(), session.Tag(), "connectionless packets MUST carry the session tag")

	s.Equal([]byte{19, 19, 19, 19, 19, 20, 16, 18}, prefixes(s.tile.Written()),
		"TDI, challenge, confirm and the signed channel ack MUST be sent in order")
	s.Equal(1, s.tile.SignedPackets(), "channel ack MUST be signed with the derived key")
	s.Zero(s.tile.BadSignatures())
}

func (s *SessionSuite) TestHandshakeChallengeCarriesRandA() {
	s.mustAuthenticate()

	written := s.tile.Written()
	challenge, confirm := written[5], written[6]
	s.Len(challenge, 6+14, "challenge MUST carry a 14-byte randA")
	s.Equal(challenge[6:], confirm[6:], "confirm MUST echo randA")
}

func (s *SessionSuite) TestHandshakeAssociateMode() {
	// GOAL: Verify a 27 reply skips the confirm step
	//
	// TEST SCENARIO: Tag answers the challenge with associate and opens the channel on its own → no 16 is sent

	s.tile.Associate = true
	session := s.mustAuthenticate()

	s.True(session.Authenticated())
	s.Equal([]byte{19, 19, 19, 19, 19, 20, 18}, prefixes(s.tile.Written()))
}

func (s *SessionSuite) TestReadyFields() {
	tests := []struct {
		name     string
		extra    []byte
		features []byte
		nonceB   uint32
	}{
		{name: "features split around nonce", extra: []byte{1, 2, 3, 0x2a, 0, 0, 0, 9, 8}, features: []byte{1, 2, 3, 9, 8}, nonceB: 42},
		{name: "little endian nonce", extra: []byte{0, 0, 0, 0x01, 0x02, 0x03, 0x04}, features: []byte{0, 0, 0}, nonceB: 0x04030201},
		{name: "short ready keeps raw features", extra: []byte{1, 2}, features: []byte{1, 2}, nonceB: 0},
		{name: "max payload only", extra: nil, features: nil, nonceB: 0},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.tile = testutils.NewFakeTile("C4:52:33:8D:1E:0A")
			s.tile.MaxPayload = 40
			s.tile.ReadyExtra = tt.extra

			session := s.mustAuthenticate()
			s.Equal(40, session.MaxPayload())
			s.Equal(tt.features, session.Features())
			s.Equal(tt.nonceB, session.NonceB())
		})
	}
}

func (s *SessionSuite) TestTDIFailureIsTolerated() {
	// GOAL: Verify a silent TDI only warns and the tile id falls back to the characteristic
	//
	// TEST SCENARIO: Tag ignores TDI but exposes the tile id characteristic → auth succeeds with that id

	s.tile.SkipTDI = true
	s.tile.TileIDChar = []byte{0xab, 0xcd, 0x01}

	session, err := s.authenticate(toa.WithExchangeTimeout(50 * time.Millisecond))
	s.Require().NoError(err)

	s.True(session.Authenticated())
	s.Equal(toa.TileInfo{TileID: "abcd01"}, session.Info())
	s.Contains(s.helper.Logs(), "TDI sequence failed")
}

func (s *SessionSuite) TestTDIPartialFeatures() {
	s.tile.TDIFeatures = 0x02
	s.tile.TileIDChar = []byte{0x77}

	session := s.mustAuthenticate()

	s.Equal(toa.TileInfo{TileID: "77", Firmware: "01.12.14.0"}, session.Info())
	s.Equal([]byte{19, 19, 20, 16, 18}, prefixes(s.tile.Written()), "only advertised TDI fields MUST be requested")
}

func (s *SessionSuite) TestTDITileIDWinsOverCharacteristic() {
	s.tile.TileIDChar = []byte{0x77}
	session := s.mustAuthenticate()
	s.Equal("cd46a6a4ddad54f0", session.Info().TileID)
}

func (s *SessionSuite) TestMissingCharacteristic() {
	s.tile.MissingResponseChar = true

	session, err := s.authenticate()

	s.Nil(session)
	s.ErrorIs(err, toa.ErrCharacteristicMissing)
	var nf *device.NotFoundError
	s.ErrorAs(err, &nf)
	s.Empty(s.tile.Written(), "nothing MUST be sent without the response characteristic")
}

func (s *SessionSuite) TestChannelNeverOpensSendsNoSignedPackets() {
	// GOAL: Verify an aborted handshake never emits a signed packet
	//
	// TEST SCENARIO: Tag acks the challenge but never opens the channel → step timeout in channel-opening, only connectionless traffic

	s.tile.SkipChannelOpen = true

	session, err := s.authenticate(toa.WithExchangeTimeout(100 * time.Millisecond))

	s.Nil(session)
	var timeout *toa.StepTimeoutError
	s.Require().ErrorAs(err, &timeout)
	s.Equal(toa.StateChannelOpening, timeout.State)
	s.Equal(toa.PrefixOpenChannel, timeout.Prefix)

	for _, pkt := range s.tile.Written() {
		s.Equal(byte(0), pkt[0], "only connectionless packets MUST be sent before the channel opens")
	}
	s.Zero(s.tile.SignedPackets())
}

func (s *SessionSuite) TestOverallAuthTimeout() {
	s.tile.SkipChannelOpen = true

	_, err := s.authenticate(
		toa.WithAuthTimeout(150*time.Millisecond),
		toa.WithExchangeTimeout(5*time.Second),
	)

	s.ErrorIs(err, toa.ErrAuthTimeout)
	s.Contains(err.Error(), "channel-opening")
}

func (s *SessionSuite) TestReadyNeverArrives() {
	s.tile.SkipReady = true

	_, err := s.authenticate(toa.WithExchangeTimeout(100 * time.Millisecond))

	var timeout *toa.StepTimeoutError
	s.Require().ErrorAs(err, &timeout)
	s.Equal(toa.PrefixReady, timeout.Prefix)
	s.Equal(1, s.tile.SignedPackets())
}

func (s *SessionSuite) TestWrongAuthKey() {
	// GOAL: Verify the channel ack signature depends on the auth key
	//
	// TEST SCENARIO: Tag holds a different key → it rejects the ack signature and never sends READY

	s.tile.AuthKey = []byte("a different key!")

	_, err := s.authenticate(toa.WithExchangeTimeout(100 * time.Millisecond))

	s.Error(err)
	s.Equal(1, s.tile.BadSignatures())
	s.Zero(s.tile.SignedPackets())
}

func (s *SessionSuite) TestWriteFailure() {
	s.tile.WriteErr = testutils.ErrFakeWrite

	_, err := s.authenticate()

	s.ErrorIs(err, testutils.ErrFakeWrite)
}

func (s *SessionSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := toa.NewAuthenticator(s.tile, testutils.DefaultAuthKey,
		toa.WithLogger(s.helper.Logger),
	).Authenticate(ctx)

	s.ErrorIs(err, context.Canceled)
}

func (s *SessionSuite) TestCommandsRequireAuthentication() {
	session := new(toa.Session)

	_, err := session.Ring(context.Background(), toa.RingRequest{})
	s.ErrorIs(err, toa.ErrNotAuthenticated)
	s.ErrorIs(session.ProgramSong(context.Background(), []byte{1}), toa.ErrNotAuthenticated)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "discovering", toa.StateDiscovering.String())
	assert.Equal(t, "querying-info", toa.StateQueryingInfo.String())
	assert.Equal(t, "challenge-sent", toa.StateChallengeSent.String())
	assert.Equal(t, "challenge-acked", toa.StateChallengeAcked.String())
	assert.Equal(t, "channel-opening", toa.StateChannelOpening.String())
	assert.Equal(t, "ready", toa.StateReady.String())
	assert.Equal(t, "failed", toa.StateFailed.String())
	assert.Equal(t, "state(42)", toa.State(42).String())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "timeout in channel-opening waiting for prefix 18",
		(&toa.StepTimeoutError{State: toa.StateChannelOpening, Prefix: 18}).Error())
	assert.Equal(t, "program block 2 rejected: type=32 code=0x05",
		(&toa.ProgramError{Block: 2, Type: 32, Code: 5}).Error())
}
