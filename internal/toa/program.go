package toa

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Chunk is one song upload packet body. Await marks the packet whose reply
// acknowledges the block.
type Chunk struct {
	Data  []byte
	Await bool
}

// Block is one checksummed slice of the song blob.
type Block struct {
	Index    int
	Data     []byte
	Checksum uint16
	Packets  []Chunk
}

// PlanBlocks splits data into blocks of bytesPerBlock, appends each block's
// little-endian checksum and cuts the result into packets of at most
// maxPayload-1 bytes. Only the first packet reaching the end of the block's
// data (checksum excluded) is awaited.
func PlanBlocks(data []byte, bytesPerBlock, maxPayload int) []Block {
	if bytesPerBlock <= 0 {
		bytesPerBlock = DefaultBytesPerBlock
	}
	maxPacket := max(maxPayload-1, 1)

	var blocks []Block
	for off := 0; off < len(data); {
		n := min(len(data)-off, bytesPerBlock)
		raw := data[off : off+n]
		sum := BlockChecksum(raw)

		framed := make([]byte, 0, n+2)
		framed = append(framed, raw...)
		framed = append(framed, byte(sum), byte(sum>>8))

		b := Block{Index: len(blocks), Data: raw, Checksum: sum}
		pktLen := min(len(framed), maxPacket)
		awaited := false
		for written := 0; written < len(framed); {
			l := min(len(framed)-written, pktLen)
			await := !awaited && written+l >= len(raw)
			awaited = awaited || await
			b.Packets = append(b.Packets, Chunk{Data: framed[written : written+l], Await: await})
			written += l
		}

		blocks = append(blocks, b)
		off += n
	}
	return blocks
}

// ProgramSong uploads an encoded song blob (see song.Encode). A timeout or an
// error-class reply on any acknowledged packet aborts the upload.
func (s *Session) ProgramSong(ctx context.Context, data []byte) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	if len(data) > 0xFFFF {
		return fmt.Errorf("song too large: %d bytes", len(data))
	}

	ready := []byte{songProgramReady, 0x01, byte(len(data)), byte(len(data) >> 8)}
	r, err := s.request(ctx, PrefixSong, ready, PrefixSongResponse)
	if err != nil {
		return fmt.Errorf("program ready: %w", err)
	}
	if len(r.Data) < 1 || r.Data[0] != songProgramReady {
		return fmt.Errorf("%w: % x", ErrNotReady, r.Data)
	}
	bytesPerBlock := DefaultBytesPerBlock
	if len(r.Data) > 1 && r.Data[1] > 0 {
		bytesPerBlock = int(r.Data[1])
	}

	blocks := PlanBlocks(data, bytesPerBlock, s.MaxPayload())
	log := s.logger.WithFields(logrus.Fields{
		"size":            len(data),
		"bytes_per_block": bytesPerBlock,
		"blocks":          len(blocks),
	})
	log.Info("Programming song")

	for _, b := range blocks {
		for _, c := range b.Packets {
			payload := append([]byte{songProgramData}, c.Data...)
			if !c.Await {
				if err := s.sendChannel(PrefixSong, payload); err != nil {
					return fmt.Errorf("block %d: %w", b.Index, err)
				}
			} else {
				r, err := s.request(ctx, PrefixSong, payload, PrefixSongResponse)
				if err != nil {
					return fmt.Errorf("block %d: %w", b.Index, err)
				}
				if err := checkBlockReply(b.Index, r.Data); err != nil {
					return err
				}
			}
			if err := sleepCtx(ctx, s.opts.PacketDelay); err != nil {
				return err
			}
		}
		log.WithFields(logrus.Fields{
			"block":    b.Index + 1,
			"checksum": fmt.Sprintf("0x%04x", b.Checksum),
		}).Debug("Block programmed")
	}

	log.Info("Song programming complete")
	return nil
}

func checkBlockReply(block int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case 32, 16, 17:
		var code byte
		if len(data) > 1 {
			code = data[1]
		}
		return &ProgramError{Block: block, Type: data[0], Code: code}
	}
	return nil
}
