package toa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

const signBufferLen = 32

// Sign concatenates parts into a 32-byte buffer, truncating or zero-padding,
// and returns HMAC-SHA256(key, buffer). Integer parts are passed as one-byte slices.
func Sign(key []byte, parts ...[]byte) []byte {
	buf := make([]byte, 0, signBufferLen)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	if len(buf) > signBufferLen {
		buf = buf[:signBufferLen]
	}
	padded := make([]byte, signBufferLen)
	copy(padded, buf)

	mac := hmac.New(sha256.New, key)
	mac.Write(padded)
	return mac.Sum(nil)
}

// DeriveSessionKey computes the 16-byte channel signing key.
func DeriveSessionKey(authKey, randA, channelData []byte, channel byte, tag [4]byte) []byte {
	return Sign(authKey, randA, channelData, []byte{channel}, tag[:])[:sessionKeyLen]
}

// PacketSignature returns the 4-byte trailer of a channel packet whose TOA
// body (prefix followed by data) is payload.
func PacketSignature(key []byte, nonce uint64, payload []byte) []byte {
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], nonce)
	return Sign(key, nonceBuf[:], []byte{1}, []byte{byte(len(payload))}, payload)[:signatureLen]
}

// DecodeAuthKey decodes the base64 auth key stored in a tag record.
func DecodeAuthKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty auth key")
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if key, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("invalid auth key: %w", err)
		}
	}
	return key, nil
}
