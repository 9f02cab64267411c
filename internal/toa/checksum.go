package toa

const checksumPoly = 33800

// BlockChecksum is the 16-bit song block checksum: CRC-16/KERMIT (reflected
// 0x1021, zero init, no final xor), written out bytewise.
func BlockChecksum(data []byte) uint16 {
	var checksum uint16
	for _, v := range data {
		b := v ^ byte(checksum)
		var b2 uint16
		for i := 0; i < 8; i++ {
			if (b2^uint16(b))&1 != 0 {
				b2 = (b2 >> 1) ^ checksumPoly
			} else {
				b2 >>= 1
			}
			b >>= 1
		}
		checksum = (checksum >> 8) ^ b2
	}
	return checksum
}
