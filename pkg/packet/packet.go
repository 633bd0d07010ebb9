// Package packet encodes and decodes Ethernet, IEEE 802.1Q, ARP, IPv4, ICMP,
// TCP and UDP frames.
//
// Every protocol is a concrete type implementing Packet. A packet owns either a
// structured payload (another Packet chosen by its discriminator field) or an
// opaque raw payload, never both. Decoding recurses through the dispatch table
// until a protocol without an entry is reached; encoding is the mirror image.
//
// Slice-valued fields are copied on the way in and on the way out, so a packet
// never shares memory with its caller.
package packet

import (
	"bytes"
	"encoding/binary"
	"hash"
	"hash/fnv"
	"slices"
)

// Packet is implemented by every protocol in this package.
type Packet interface {
	// Kind reports the protocol.
	Kind() Kind
	// Fields returns the header layout resolved against the current field
	// values, in wire order.
	Fields() []FieldDescriptor
	// HeaderBits returns the encoded header size in bits.
	HeaderBits() int

	// Serialize encodes the header followed by the payload. Self-contained
	// checksums (IPv4, ICMP) are recomputed and stored back in the packet.
	Serialize() ([]byte, error)
	// Deserialize decodes bitLength bits of data starting at bitOffset. On
	// error the packet is left unchanged.
	Deserialize(data []byte, bitOffset, bitLength int) error

	// Payload returns the structured payload, or nil.
	Payload() Packet
	// RawPayload returns a copy of the opaque payload, or nil.
	RawPayload() []byte
	// Corrupted reports whether a self-contained checksum failed to verify
	// during the last Deserialize.
	Corrupted() bool

	Clone() Packet
	Equal(other Packet) bool
	Hash() uint64
	String() string

	hdr() *header
}

// header is the state shared by all protocols: the payload chain and the
// corruption flag.
type header struct {
	payload   Packet
	raw       []byte
	corrupted bool
}

func (h *header) hdr() *header { return h }

func (h *header) Payload() Packet { return h.payload }

func (h *header) RawPayload() []byte { return cloneBytes(h.raw) }

func (h *header) Corrupted() bool { return h.corrupted }

func (h *header) setPayload(p Packet) {
	h.payload = p
	h.raw = nil
}

func (h *header) setRaw(b []byte) {
	h.raw = cloneBytes(b)
	h.payload = nil
}

func (h header) clone() header {
	c := header{raw: cloneBytes(h.raw), corrupted: h.corrupted}
	if h.payload != nil {
		c.payload = h.payload.Clone()
	}
	return c
}

func (h *header) equal(o *header) bool {
	if (h.payload == nil) != (o.payload == nil) {
		return false
	}
	if h.payload != nil && !h.payload.Equal(o.payload) {
		return false
	}
	return bytes.Equal(h.raw, o.raw)
}

// appendPayload appends the encoded structured payload, or the raw payload,
// to buf.
func (h *header) appendPayload(buf []byte) ([]byte, error) {
	if h.payload != nil {
		b, err := h.payload.Serialize()
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	}
	return append(buf, h.raw...), nil
}

// decodePayload fills the payload from the bitLength bits following a header.
// A known discriminator recurses unless structured is false; anything else
// becomes raw payload. A sub-octet tail is dropped.
func (h *header) decodePayload(outer Kind, disc uint32, structured bool, data []byte, bitOffset, bitLength int) error {
	h.payload, h.raw = nil, nil
	octets := bitLength / 8
	if octets == 0 {
		return nil
	}
	if structured {
		if k, ok := PayloadKind(outer, disc); ok {
			p := New(k)
			if err := p.Deserialize(data, bitOffset, bitLength); err != nil {
				return err
			}
			h.payload = p
			return nil
		}
	}
	raw, err := readBytes(data, bitOffset, octets*8)
	if err != nil {
		return decodeFailed(outer, err)
	}
	h.raw = raw
	return nil
}

// hashInto mixes the payload state into f.
func (h *header) hashInto(f *hasher) {
	if h.payload != nil {
		f.u64(h.payload.Hash())
	} else {
		f.u64(0)
	}
	f.bytes(h.raw)
}

// checkBounds validates the decode window before any field is read.
func checkBounds(k Kind, data []byte, bitOffset, bitLength, minBits int) error {
	if bitOffset < 0 || bitLength < 0 || bitOffset+bitLength > len(data)*8 {
		return &Error{Kind: k, Class: ClassInternal, Msg: "decode window outside buffer", Err: ErrShortBuffer}
	}
	if bitLength < minBits {
		return shortBuffer(k, minBits, bitLength)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return slices.Clone(b)
}

// hasher folds field values into an FNV-1a digest.
type hasher struct {
	h   hash.Hash64
	buf [8]byte
}

func newHasher(k Kind) *hasher {
	f := &hasher{h: fnv.New64a()}
	f.u64(uint64(k))
	return f
}

func (f *hasher) u64(v uint64) {
	binary.BigEndian.PutUint64(f.buf[:], v)
	f.h.Write(f.buf[:])
}

func (f *hasher) bytes(b []byte) {
	f.u64(uint64(len(b)))
	f.h.Write(b)
}

func (f *hasher) sum64() uint64 { return f.h.Sum64() }
