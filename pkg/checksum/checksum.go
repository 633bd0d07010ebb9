// Package checksum implements the 16-bit one's-complement Internet checksum
// (RFC 1071) used by the IPv4 header and ICMP.
package checksum

import "encoding/binary"

// Sum returns the one's-complement sum of data taken as big-endian 16-bit
// words. An odd trailing octet is padded with a zero octet. The carry is
// folded back until the result fits in 16 bits.
func Sum(data []byte) uint16 {
	return fold(accumulate(0, data))
}

// Checksum returns the one's complement of Sum(data). Callers compute it with
// the checksum field itself zeroed.
func Checksum(data []byte) uint16 {
	return ^Sum(data)
}

// Verify reports whether data, including its transmitted checksum field,
// sums to all ones.
func Verify(data []byte) bool {
	return Sum(data) == 0xffff
}

func accumulate(sum uint64, data []byte) uint64 {
	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint64(binary.BigEndian.Uint16(data[i:]))
	}
	if n != len(data) {
		sum += uint64(data[n]) << 8
	}
	return sum
}

func fold(sum uint64) uint16 {
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return uint16(sum)
}
