// Package bitfield reads and writes big-endian bit fields inside octet buffers.
//
// Bit 0 of a buffer is the most significant bit of its first octet. Fields may
// start and end anywhere; neighbouring bits that do not belong to the field are
// never touched.
package bitfield

import "errors"

// MaxWidth is the widest field Read and Write handle. Wider fields go through
// ReadBytes and WriteBytes.
const MaxWidth = 64

var (
	ErrOutOfRange = errors.New("bitfield: field exceeds buffer")
	ErrOverflow   = errors.New("bitfield: value wider than field")
	ErrWidth      = errors.New("bitfield: invalid field width")
)

// Read returns the bitWidth-bit unsigned value starting at bitOffset.
func Read(buf []byte, bitOffset, bitWidth int) (uint64, error) {
	if bitWidth <= 0 || bitWidth > MaxWidth {
		return 0, ErrWidth
	}
	if err := checkRange(buf, bitOffset, bitWidth); err != nil {
		return 0, err
	}
	end := bitOffset + bitWidth
	var v uint64
	for pos := bitOffset; pos < end; {
		shift := pos & 7
		n := min(8-shift, end-pos)
		chunk := (buf[pos>>3] >> uint(8-shift-n)) & lowMask(n)
		v = v<<uint(n) | uint64(chunk)
		pos += n
	}
	return v, nil
}

// Write stores the low bitWidth bits of v starting at bitOffset. A value that
// needs more than bitWidth bits is rejected with ErrOverflow and buf is left
// unchanged.
func Write(buf []byte, bitOffset, bitWidth int, v uint64) error {
	if bitWidth <= 0 || bitWidth > MaxWidth {
		return ErrWidth
	}
	if bitWidth < MaxWidth && v>>uint(bitWidth) != 0 {
		return ErrOverflow
	}
	if err := checkRange(buf, bitOffset, bitWidth); err != nil {
		return err
	}
	end := bitOffset + bitWidth
	for pos := bitOffset; pos < end; {
		shift := pos & 7
		n := min(8-shift, end-pos)
		rest := uint(end - pos - n)
		s := uint(8 - shift - n)
		m := lowMask(n)
		chunk := byte(v>>rest) & m
		buf[pos>>3] = buf[pos>>3]&^(m<<s) | chunk<<s
		pos += n
	}
	return nil
}

// ReadBytes copies bitWidth bits starting at bitOffset into a new slice of
// ceil(bitWidth/8) octets. A partial last octet is left aligned and zero
// filled. A zero width yields nil.
func ReadBytes(buf []byte, bitOffset, bitWidth int) ([]byte, error) {
	if bitWidth < 0 {
		return nil, ErrWidth
	}
	if bitWidth == 0 {
		return nil, nil
	}
	if err := checkRange(buf, bitOffset, bitWidth); err != nil {
		return nil, err
	}
	out := make([]byte, (bitWidth+7)/8)
	if bitOffset&7 == 0 {
		copy(out, buf[bitOffset>>3:])
		if tail := bitWidth & 7; tail != 0 {
			out[len(out)-1] &^= lowMask(8 - tail)
		}
		return out, nil
	}
	for i := range out {
		n := min(8, bitWidth-i*8)
		v, err := Read(buf, bitOffset+i*8, n)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v << uint(8-n))
	}
	return out, nil
}

// WriteBytes stores the first bitWidth bits of src starting at bitOffset.
// If src holds fewer bits the remainder of the field is zero filled; if it
// holds more whole octets than the field can take, ErrOverflow is returned.
func WriteBytes(buf []byte, bitOffset, bitWidth int, src []byte) error {
	if bitWidth < 0 {
		return ErrWidth
	}
	if len(src) > (bitWidth+7)/8 {
		return ErrOverflow
	}
	if bitWidth == 0 {
		return nil
	}
	if err := checkRange(buf, bitOffset, bitWidth); err != nil {
		return err
	}
	for i := 0; i*8 < bitWidth; i++ {
		n := min(8, bitWidth-i*8)
		var b byte
		if i < len(src) {
			b = src[i]
		}
		if err := Write(buf, bitOffset+i*8, n, uint64(b>>uint(8-n))); err != nil {
			return err
		}
	}
	return nil
}

func checkRange(buf []byte, bitOffset, bitWidth int) error {
	if bitOffset < 0 || bitOffset+bitWidth > len(buf)*8 {
		return ErrOutOfRange
	}
	return nil
}

// lowMask returns an octet with the n low bits set, 0 <= n <= 8.
func lowMask(n int) byte {
	return byte(0xff) >> uint(8-n)
}
