package toa

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/tilectl/internal/device"
)

// State is a handshake step. Transitions only move forward.
type State int

const (
	StateDiscovering State = iota
	StateQueryingInfo
	StateChallengeSent
	StateChallengeAcked
	StateChannelOpening
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateQueryingInfo:
		return "querying-info"
	case StateChallengeSent:
		return "challenge-sent"
	case StateChallengeAcked:
		return "challenge-acked"
	case StateChannelOpening:
		return "channel-opening"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// second byte of the channel-open acknowledgement [18, 19]
const openChannelAck byte = 19

// TileInfo is what the tag reports through TDI.
type TileInfo struct {
	TileID   string // hex
	Firmware string
	Model    string
	Hardware string
}

// Authenticator runs the TOA handshake over one connection.
type Authenticator struct {
	conn    device.Connection
	authKey []byte
	opts    Options
}

// NewAuthenticator prepares a handshake. authKey is the decoded tag key (see DecodeAuthKey).
func NewAuthenticator(conn device.Connection, authKey []byte, opts ...Option) *Authenticator {
	return &Authenticator{
		conn:    conn,
		authKey: authKey,
		opts:    newOptions(opts...),
	}
}

// Authenticate drives the connection from characteristic discovery to READY.
// Any failure aborts the whole sequence; no partial session is returned.
func (a *Authenticator) Authenticate(ctx context.Context) (*Session, error) {
	s, err := newSession(a.conn, a.authKey, a.opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.AuthTimeout)
	defer cancel()

	if err := s.handshake(ctx); err != nil {
		stalled := s.State()
		s.setState(StateFailed)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s (stalled in %s)", ErrAuthTimeout, a.opts.AuthTimeout, stalled)
		}
		return nil, err
	}
	return s, nil
}

// Session is an authenticated (or authenticating) conversation with one tag.
type Session struct {
	conn    device.Connection
	authKey []byte
	opts    Options
	logger  *logrus.Entry
	waiters *waiters

	cmd    device.Characteristic
	resp   device.Characteristic
	idChar device.Characteristic

	tag   [4]byte
	randA [randALen]byte
	randT []byte
	sresT []byte
	info  TileInfo

	mu            sync.Mutex
	state         State
	nonceA        uint64
	nonceB        uint32
	channel       byte
	channelData   []byte
	channelOpen   bool
	authenticated bool
	key           []byte
	maxPayload    int
	features      []byte
}

func newSession(conn device.Connection, authKey []byte, opts Options) (*Session, error) {
	s := &Session{
		conn:       conn,
		authKey:    authKey,
		opts:       opts,
		waiters:    newWaiters(),
		maxPayload: DefaultMaxPayload,
		logger:     opts.Logger.WithField("address", conn.Address()),
	}
	if _, err := io.ReadFull(opts.Random, s.randA[:]); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	if _, err := io.ReadFull(opts.Random, s.tag[:]); err != nil {
		return nil, fmt.Errorf("generate session tag: %w", err)
	}
	return s, nil
}

func (s *Session) handshake(ctx context.Context) error {
	s.setState(StateDiscovering)
	if err := s.discover(); err != nil {
		return err
	}
	if err := s.resp.Subscribe(s.onNotification); err != nil {
		return fmt.Errorf("subscribe to responses: %w", err)
	}
	if err := sleepCtx(ctx, s.opts.SettleDelay); err != nil {
		return err
	}

	s.setState(StateQueryingInfo)
	if err := s.queryInfo(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		s.logger.WithError(err).Warn("TDI sequence failed, trying auth anyway")
	}
	s.readTileIDChar()

	s.setState(StateChallengeSent)
	// the tag may answer the confirm with the channel open before we get to wait for it
	ack := s.waiters.register(PrefixAuthResponse, PrefixAssociate)
	open := s.waiters.register(PrefixOpenChannel)
	if err := s.sendConnectionless(PrefixAuthRequest, s.randA[:]); err != nil {
		s.waiters.cancel(ack)
		s.waiters.cancel(open)
		return err
	}

	r, err := s.await(ctx, ack, PrefixAuthResponse)
	if err != nil {
		s.waiters.cancel(open)
		return err
	}
	if len(r.Data) >= randTLen+sresTLen {
		s.randT = r.Data[:randTLen]
		s.sresT = r.Data[randTLen : randTLen+sresTLen]
	}
	s.logger.WithFields(logrus.Fields{
		"prefix": r.Prefix,
		"randT":  hex.EncodeToString(s.randT),
		"sresT":  hex.EncodeToString(s.sresT),
	}).Debug("Auth challenge acknowledged")

	s.setState(StateChallengeAcked)
	if r.Prefix == PrefixAuthResponse {
		if err := s.sendConnectionless(PrefixConfirm, s.randA[:]); err != nil {
			s.waiters.cancel(open)
			return err
		}
	}

	s.setState(StateChannelOpening)
	r, err = s.await(ctx, open, PrefixOpenChannel)
	if err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("empty channel-open payload")
	}

	ready := s.waiters.register(PrefixReady)
	s.openChannel(r.Data[0], r.Data[1:])
	if err := s.sendChannel(PrefixOpenChannel, []byte{openChannelAck}); err != nil {
		s.waiters.cancel(ready)
		return err
	}

	for {
		r, err = s.await(ctx, ready, PrefixReady)
		if err != nil {
			return err
		}
		if len(r.Data) > 0 {
			break
		}
		ready = s.waiters.register(PrefixReady)
	}
	s.applyReady(r.Data)
	s.setState(StateReady)
	return nil
}

func (s *Session) discover() error {
	var err error
	if s.cmd, err = s.conn.GetCharacteristic(ServiceUUID, CommandUUID); err != nil {
		return fmt.Errorf("%w: %w", ErrCharacteristicMissing, err)
	}
	if s.resp, err = s.conn.GetCharacteristic(ServiceUUID, ResponseUUID); err != nil {
		return fmt.Errorf("%w: %w", ErrCharacteristicMissing, err)
	}
	if s.idChar, err = s.conn.GetCharacteristic(ServiceUUID, TileIDUUID); err != nil {
		s.idChar = nil
	}
	return nil
}

// queryInfo requests the feature bitmask, then each advertised field.
func (s *Session) queryInfo(ctx context.Context) error {
	r, err := s.requestConnectionless(ctx, PrefixTDIRequest, []byte{tdiFeatures}, PrefixTDIResponse)
	if err != nil {
		return fmt.Errorf("TDI features: %w", err)
	}
	var available byte
	if len(r.Data) > 0 {
		available = r.Data[0]
	}

	fields := []struct {
		bit  byte
		req  byte
		name string
		set  func([]byte)
	}{
		{1 << 0, tdiTileID, "tile id", func(b []byte) { s.info.TileID = hex.EncodeToString(b) }},
		{1 << 1, tdiFirmware, "firmware", func(b []byte) { s.info.Firmware = printable(b) }},
		{1 << 2, tdiModel, "model", func(b []byte) { s.info.Model = printable(b) }},
		{1 << 3, tdiHardware, "hardware", func(b []byte) { s.info.Hardware = printable(b) }},
	}
	for _, f := range fields {
		if available&f.bit == 0 {
			continue
		}
		r, err := s.requestConnectionless(ctx, PrefixTDIRequest, []byte{f.req}, PrefixTDIResponse)
		if err != nil {
			return fmt.Errorf("TDI %s: %w", f.name, err)
		}
		f.set(r.Data)
	}

	s.logger.WithFields(logrus.Fields{
		"tile_id":  s.info.TileID,
		"firmware": s.info.Firmware,
		"model":    s.info.Model,
		"hardware": s.info.Hardware,
	}).Info("TDI complete")
	return nil
}

func (s *Session) readTileIDChar() {
	if s.idChar == nil || s.info.TileID != "" {
		return
	}
	data, err := s.idChar.Read(s.opts.ExchangeTimeout)
	if err != nil {
		s.logger.WithError(err).Debug("Tile id characteristic read failed")
		return
	}
	s.info.TileID = hex.EncodeToString(data)
}

func printable(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func (s *Session) openChannel(channel byte, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channel = channel
	s.channelData = data
	s.key = DeriveSessionKey(s.authKey, s.randA[:], data, channel, s.tag)
	s.channelOpen = true
	s.logger.WithFields(logrus.Fields{
		"channel": channel,
		"data":    hex.EncodeToString(data),
	}).Debug("Channel opened")
}

// applyReady reads max payload, then 3 feature bytes, a LE nonceB and any further feature bytes.
func (s *Session) applyReady(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxPayload = int(data[0])
	rest := data[1:]
	if len(rest) >= 7 {
		s.nonceB = binary.LittleEndian.Uint32(rest[3:7])
		s.features = append(append([]byte{}, rest[:3]...), rest[7:]...)
	} else {
		s.features = append([]byte{}, rest...)
	}
	s.authenticated = true
	s.logger.WithFields(logrus.Fields{
		"max_payload": s.maxPayload,
		"features":    hex.EncodeToString(s.features),
		"nonce_b":     s.nonceB,
	}).Info("Authentication complete")
}

// onNotification runs on the transport goroutine.
func (s *Session) onNotification(data []byte) {
	s.mu.Lock()
	st := ChannelState{Tag: s.tag, Channel: s.channel, Open: s.channelOpen, Authenticated: s.authenticated}
	s.mu.Unlock()

	pkt := Classify(data, st)
	entry := s.logger.WithFields(logrus.Fields{"rx": hex.EncodeToString(data), "kind": pkt.Kind})

	switch pkt.Kind {
	case Connectionless, Channel:
		if s.waiters.deliver(pkt.Prefix, pkt.Data) {
			entry.WithField("prefix", pkt.Prefix).Debug("RX")
			return
		}
		entry.WithField("prefix", pkt.Prefix).Debug("RX unsolicited, dropped")
	default:
		entry.Debug("RX ignored")
	}
}

func (s *Session) sendConnectionless(prefix byte, data []byte) error {
	pkt, err := BuildConnectionless(s.tag, prefix, data)
	if err != nil {
		return err
	}
	return s.write(pkt)
}

// sendChannel signs and sends on the open channel. The nonce advances before every send.
func (s *Session) sendChannel(prefix byte, data []byte) error {
	s.mu.Lock()
	if !s.channelOpen {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.nonceA++
	pkt := BuildChannel(s.channel, prefix, data, s.key, s.nonceA)
	s.mu.Unlock()
	return s.write(pkt)
}

func (s *Session) write(pkt []byte) error {
	s.logger.WithField("tx", hex.EncodeToString(pkt)).Debug("TX")
	if err := s.cmd.Write(pkt, false, s.opts.ExchangeTimeout); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func (s *Session) requestConnectionless(ctx context.Context, prefix byte, data []byte, respPrefix byte) (Response, error) {
	w := s.waiters.register(respPrefix)
	if err := s.sendConnectionless(prefix, data); err != nil {
		s.waiters.cancel(w)
		return Response{}, err
	}
	return s.await(ctx, w, respPrefix)
}

func (s *Session) request(ctx context.Context, prefix byte, data []byte, respPrefix byte) (Response, error) {
	w := s.waiters.register(respPrefix)
	if err := s.sendChannel(prefix, data); err != nil {
		s.waiters.cancel(w)
		return Response{}, err
	}
	return s.await(ctx, w, respPrefix)
}

// await blocks for w, the exchange timeout or ctx. On timeout the waiter is removed.
func (s *Session) await(ctx context.Context, w *waiter, prefix byte) (Response, error) {
	timer := time.NewTimer(s.opts.ExchangeTimeout)
	defer timer.Stop()

	select {
	case r := <-w.ch:
		return r, nil
	case <-timer.C:
		s.waiters.cancel(w)
		return Response{}, &StepTimeoutError{State: s.State(), Prefix: prefix}
	case <-ctx.Done():
		s.waiters.cancel(w)
		return Response{}, ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.logger.WithFields(logrus.Fields{"from": prev, "to": st}).Debug("Handshake state")
	}
}

// State returns the current handshake step.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Authenticated reports whether READY was received.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Info returns TDI details; fields the tag did not advertise are empty.
func (s *Session) Info() TileInfo { return s.info }

// MaxPayload is the negotiated maximum TOA payload.
func (s *Session) MaxPayload() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxPayload
}

// Features is a copy of the feature bytes carried by READY.
func (s *Session) Features() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.features...)
}

// NonceB is the tag's nonce from READY.
func (s *Session) NonceB() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonceB
}

// Channel is the channel id the tag assigned on open.
func (s *Session) Channel() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Address is the Bluetooth address of the connected tag.
func (s *Session) Address() string { return s.conn.Address() }

// Tag is the random 4-byte session tag used in connectionless packets.
func (s *Session) Tag() [4]byte { return s.tag }
