package testutils

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/srg/tilectl/internal/device"
	"github.com/srg/tilectl/internal/toa"
)

// DefaultAuthKey is the 16-byte key FakeTile uses unless told otherwise.
var DefaultAuthKey = []byte{
	0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
	0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
}

// ErrFakeWrite is a ready-made failure for FakeTile.WriteErr.
var ErrFakeWrite = errors.New("fake write failure")

// FakeTile emulates the GATT surface and TOA firmware of a Tile. It
// implements device.Connection; FakeConnector resets its session state on
// every connect.
//
// Replies are delivered synchronously from Write through the subscribed
// handler, outside the tile's lock.
type FakeTile struct {
	Addr    string
	AuthKey []byte

	TDIFeatures byte // bit 0 tile id, 1 firmware, 2 model, 3 hardware
	TileID      []byte
	Firmware    string
	Model       string
	Hardware    string
	SkipTDI     bool   // never answer TDI requests
	TileIDChar  []byte // value of the optional tile id characteristic; nil hides it

	Associate       bool // answer the challenge with 27 and open the channel without a confirm
	ChannelID       byte
	ChannelData     []byte
	SkipChannelOpen bool
	SkipReady       bool
	MaxPayload      byte
	ReadyExtra      []byte // after max payload: features[3] nonceB[4] features...

	RingReply         []byte // nil never answers a ring
	BytesPerBlock     byte
	ProgramReadyReply []byte // overrides [4 bpb]
	ProgramErrorBlock int    // -1 for none
	ProgramErrorReply []byte

	MissingResponseChar bool
	WriteErr            error

	mu            sync.Mutex
	handler       func([]byte)
	tag           [4]byte
	randA         []byte
	key           []byte
	channelOpen   bool
	rxNonce       uint64
	txNonce       uint64
	written       [][]byte
	signed        int
	badSignatures int
	rings         [][]byte
	program       programState
	disconnected  bool
	connections   int
}

type programState struct {
	total          int
	bytesPerBlock  int
	offset         int
	block          int
	framed         []byte
	acked          bool
	data           []byte
	checksumErrors int
}

var (
	fakeRandT = []byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19}
	fakeSresT = []byte{0xa0, 0xa1, 0xa2, 0xa3}
)

// NewFakeTile returns a tile that completes the full handshake and answers rings.
func NewFakeTile(address string) *FakeTile {
	return &FakeTile{
		Addr:              address,
		AuthKey:           DefaultAuthKey,
		TDIFeatures:       0x0F,
		TileID:            []byte{0xcd, 0x46, 0xa6, 0xa4, 0xdd, 0xad, 0x54, 0xf0},
		Firmware:          "01.12.14.0",
		Model:             "T1",
		Hardware:          "17.03",
		ChannelID:         3,
		ChannelData:       []byte{0x51, 0x52, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59, 0x5a},
		MaxPayload:        20,
		ReadyExtra:        []byte{0x01, 0x02, 0x03, 0x2a, 0x00, 0x00, 0x00},
		RingReply:         []byte{0x02},
		BytesPerBlock:     64,
		ProgramErrorBlock: -1,
	}
}

// Reset drops all per-connection state.
func (t *FakeTile) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = nil
	t.tag = [4]byte{}
	t.randA = nil
	t.key = nil
	t.channelOpen = false
	t.rxNonce, t.txNonce = 0, 0
	t.written = nil
	t.signed, t.badSignatures = 0, 0
	t.rings = nil
	t.program = programState{}
	t.disconnected = false
	t.connections++
}

func (t *FakeTile) Address() string { return t.Addr }

func (t *FakeTile) GetCharacteristic(service, uuid string) (device.Characteristic, error) {
	notFound := &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
	if device.NormalizeUUID(service) != device.NormalizeUUID(toa.ServiceUUID) {
		return nil, notFound
	}
	switch device.NormalizeUUID(uuid) {
	case device.NormalizeUUID(toa.CommandUUID):
		return &fakeCharacteristic{tile: t, uuid: uuid}, nil
	case device.NormalizeUUID(toa.ResponseUUID):
		if t.MissingResponseChar {
			return nil, notFound
		}
		return &fakeCharacteristic{tile: t, uuid: uuid}, nil
	case device.NormalizeUUID(toa.TileIDUUID):
		if t.TileIDChar == nil {
			return nil, notFound
		}
		return &fakeCharacteristic{tile: t, uuid: uuid}, nil
	}
	return nil, notFound
}

func (t *FakeTile) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected = true
	t.handler = nil
	return nil
}

// Written returns every packet written to the command characteristic.
func (t *FakeTile) Written() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.written))
	copy(out, t.written)
	return out
}

// SignedPackets counts channel packets whose signature and nonce verified.
func (t *FakeTile) SignedPackets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.signed
}

func (t *FakeTile) BadSignatures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.badSignatures
}

// Rings returns the payloads of received play commands.
func (t *FakeTile) Rings() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.rings...)
}

// ProgrammedSong is the song reassembled from complete uploaded blocks.
func (t *FakeTile) ProgrammedSong() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.program.data...)
}

func (t *FakeTile) ChecksumErrors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.program.checksumErrors
}

func (t *FakeTile) Disconnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnected
}

// Connections counts connects made through FakeConnector.
func (t *FakeTile) Connections() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connections
}

// SessionTag is the tag the client used in its last connectionless packet.
func (t *FakeTile) SessionTag() [4]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tag
}

func (t *FakeTile) write(data []byte) error {
	t.mu.Lock()
	if t.WriteErr != nil {
		err := t.WriteErr
		t.mu.Unlock()
		return err
	}
	t.written = append(t.written, append([]byte(nil), data...))
	replies := t.handle(data)
	h := t.handler
	t.mu.Unlock()

	if h != nil {
		for _, r := range replies {
			h(r)
		}
	}
	return nil
}

func (t *FakeTile) handle(data []byte) [][]byte {
	switch {
	case len(data) == 0:
		return nil
	case data[0] == 0:
		if len(data) < 6 {
			return nil
		}
		copy(t.tag[:], data[1:5])
		return t.handleConnectionless(data[5], data[6:])
	case t.channelOpen && data[0] == t.ChannelID:
		return t.handleChannel(data[1:])
	}
	return nil
}

func (t *FakeTile) handleConnectionless(prefix byte, body []byte) [][]byte {
	switch prefix {
	case toa.PrefixTDIRequest:
		if t.SkipTDI || len(body) == 0 {
			return nil
		}
		var value []byte
		switch body[0] {
		case 1:
			value = []byte{t.TDIFeatures}
		case 2:
			value = t.TileID
		case 3:
			value = []byte(t.Firmware)
		case 4:
			value = []byte(t.Model)
		case 5:
			value = []byte(t.Hardware)
		default:
			return nil
		}
		return [][]byte{t.connectionless(toa.PrefixTDIResponse, value)}

	case toa.PrefixAuthRequest:
		t.randA = append([]byte(nil), body...)
		ack := append(append([]byte(nil), fakeRandT...), fakeSresT...)
		if t.Associate {
			return append([][]byte{t.connectionless(toa.PrefixAssociate, ack)}, t.openChannel()...)
		}
		return [][]byte{t.connectionless(toa.PrefixAuthResponse, ack)}

	case toa.PrefixConfirm:
		if !bytes.Equal(body, t.randA) {
			return nil
		}
		return t.openChannel()
	}
	return nil
}

func (t *FakeTile) openChannel() [][]byte {
	if t.SkipChannelOpen {
		return nil
	}
	t.key = toa.DeriveSessionKey(t.AuthKey, t.randA, t.ChannelData, t.ChannelID, t.tag)
	t.channelOpen = true
	return [][]byte{t.connectionless(toa.PrefixOpenChannel, append([]byte{t.ChannelID}, t.ChannelData...))}
}

// handleChannel verifies the signature against the next expected nonce.
func (t *FakeTile) handleChannel(body []byte) [][]byte {
	if len(body) < 1+4 {
		t.badSignatures++
		return nil
	}
	payload, sig := body[:len(body)-4], body[len(body)-4:]
	if !bytes.Equal(sig, toa.PacketSignature(t.key, t.rxNonce+1, payload)) {
		t.badSignatures++
		return nil
	}
	t.rxNonce++
	t.signed++

	prefix, data := payload[0], payload[1:]
	switch prefix {
	case toa.PrefixOpenChannel:
		if t.SkipReady {
			return nil
		}
		ready := append([]byte{t.MaxPayload}, t.ReadyExtra...)
		return [][]byte{t.channelPacket(toa.PrefixReady, ready, false)}

	case toa.PrefixSong:
		if len(data) == 0 {
			return nil
		}
		switch data[0] {
		case 2:
			return t.ring(data)
		case 4:
			if len(data) < 4 {
				return nil
			}
			t.program = programState{
				total:         int(binary.LittleEndian.Uint16(data[2:4])),
				bytesPerBlock: int(t.BytesPerBlock),
			}
			if t.program.bytesPerBlock == 0 {
				t.program.bytesPerBlock = toa.DefaultBytesPerBlock
			}
			reply := t.ProgramReadyReply
			if reply == nil {
				reply = []byte{4, t.BytesPerBlock}
			}
			return [][]byte{t.channelPacket(toa.PrefixSongResponse, reply, true)}
		case 5:
			return t.programChunk(data[1:])
		default:
			// song id prefix; ids 4 and 5 collide with the upload commands
			if len(data) > 1 && data[1] == 2 {
				return t.ring(data)
			}
		}
	}
	return nil
}

// ring records the full ring payload, song id included.
func (t *FakeTile) ring(data []byte) [][]byte {
	t.rings = append(t.rings, append([]byte(nil), data...))
	if t.RingReply == nil {
		return nil
	}
	return [][]byte{t.channelPacket(toa.PrefixSongResponse, t.RingReply, true)}
}

// programChunk acknowledges the first packet that reaches the end of a
// block's data and verifies the checksum once the block is complete.
func (t *FakeTile) programChunk(chunk []byte) [][]byte {
	p := &t.program
	rawLen := min(p.bytesPerBlock, p.total-p.offset)
	before := len(p.framed)
	p.framed = append(p.framed, chunk...)

	var out [][]byte
	if !p.acked && before < rawLen && len(p.framed) >= rawLen {
		p.acked = true
		reply := []byte{5, byte(p.block)}
		if p.block == t.ProgramErrorBlock {
			reply = t.ProgramErrorReply
		}
		out = append(out, t.channelPacket(toa.PrefixSongResponse, reply, true))
	}

	if len(p.framed) >= rawLen+2 {
		raw := p.framed[:rawLen]
		if toa.BlockChecksum(raw) != binary.LittleEndian.Uint16(p.framed[rawLen:rawLen+2]) {
			p.checksumErrors++
		}
		p.data = append(p.data, raw...)
		p.offset += rawLen
		p.block++
		p.framed = nil
		p.acked = false
	}
	return out
}

func (t *FakeTile) connectionless(prefix byte, data []byte) []byte {
	pkt := append([]byte{0}, t.tag[:]...)
	pkt = append(pkt, prefix)
	return append(pkt, data...)
}

func (t *FakeTile) channelPacket(prefix byte, data []byte, signed bool) []byte {
	payload := append([]byte{prefix}, data...)
	pkt := append([]byte{t.ChannelID}, payload...)
	if !signed {
		return pkt
	}
	t.txNonce++
	return append(pkt, toa.PacketSignature(t.key, t.txNonce, payload)...)
}

type fakeCharacteristic struct {
	tile *FakeTile
	uuid string
}

func (c *fakeCharacteristic) UUID() string { return c.uuid }

func (c *fakeCharacteristic) Read(time.Duration) ([]byte, error) {
	c.tile.mu.Lock()
	defer c.tile.mu.Unlock()
	return append([]byte(nil), c.tile.TileIDChar...), nil
}

func (c *fakeCharacteristic) Write(data []byte, _ bool, _ time.Duration) error {
	return c.tile.write(data)
}

func (c *fakeCharacteristic) Subscribe(handler func(data []byte)) error {
	c.tile.mu.Lock()
	defer c.tile.mu.Unlock()
	c.tile.handler = handler
	return nil
}
