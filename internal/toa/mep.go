package toa

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrInvalidPreAuthPrefix is returned when a connectionless packet would carry
// a prefix the tag does not accept before authentication.
var ErrInvalidPreAuthPrefix = errors.New("invalid pre-auth prefix")

var preAuthPrefixes = map[byte]bool{
	PrefixConfirm:      true,
	PrefixTDIRequest:   true,
	PrefixAuthRequest:  true,
	PrefixAuthResponse: true,
}

var broadcastTag = []byte{0xFF, 0xFF, 0xFF, 0xFF}

// BuildConnectionless frames a pre-auth packet: 00 tag[4] prefix data...
func BuildConnectionless(tag [4]byte, prefix byte, data []byte) ([]byte, error) {
	if !preAuthPrefixes[prefix] {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPreAuthPrefix, prefix)
	}
	pkt := make([]byte, 0, 6+len(data))
	pkt = append(pkt, 0)
	pkt = append(pkt, tag[:]...)
	pkt = append(pkt, prefix)
	return append(pkt, data...), nil
}

// BuildChannel frames a signed channel packet: channel prefix data... sig[4].
// nonce is the already incremented send counter.
func BuildChannel(channel, prefix byte, data, key []byte, nonce uint64) []byte {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, prefix)
	payload = append(payload, data...)

	pkt := make([]byte, 0, 1+len(payload)+signatureLen)
	pkt = append(pkt, channel)
	pkt = append(pkt, payload...)
	return append(pkt, PacketSignature(key, nonce, payload)...)
}

// PacketKind is the MEP addressing mode of an incoming packet.
type PacketKind int

const (
	Invalid PacketKind = iota
	Connectionless
	Broadcast
	Channel
)

func (k PacketKind) String() string {
	switch k {
	case Connectionless:
		return "connectionless"
	case Broadcast:
		return "broadcast"
	case Channel:
		return "channel"
	default:
		return "invalid"
	}
}

// Packet is a classified incoming MEP packet. Prefix and Data are only set
// for Connectionless and Channel packets.
type Packet struct {
	Kind   PacketKind
	Prefix byte
	Data   []byte
}

// ChannelState is the part of a session that decides how incoming packets are read.
type ChannelState struct {
	Tag           [4]byte
	Channel       byte
	Open          bool
	Authenticated bool
}

// Classify decodes an incoming notification.
//
// Connectionless packets must echo our session tag or the broadcast tag.
// Channel packets are only recognised once the channel is open, and their
// 4-byte signature trailer is stripped only once the session is authenticated.
func Classify(pkt []byte, st ChannelState) Packet {
	if len(pkt) == 0 {
		return Packet{Kind: Invalid}
	}

	switch first := pkt[0]; {
	case first == 0:
		if len(pkt) < 6 {
			return Packet{Kind: Invalid}
		}
		if !bytes.Equal(pkt[1:5], st.Tag[:]) && !bytes.Equal(pkt[1:5], broadcastTag) {
			return Packet{Kind: Invalid}
		}
		return Packet{Kind: Connectionless, Prefix: pkt[5], Data: pkt[6:]}

	case first == 1:
		return Packet{Kind: Broadcast, Data: pkt[1:]}

	case st.Open && first == st.Channel:
		if len(pkt) < 2 {
			return Packet{Kind: Invalid}
		}
		data := pkt[2:]
		if st.Authenticated {
			if len(data) < signatureLen {
				data = nil
			} else {
				data = data[:len(data)-signatureLen]
			}
		}
		return Packet{Kind: Channel, Prefix: pkt[1], Data: data}
	}

	return Packet{Kind: Invalid}
}
