package packet

import "fmt"

// Decode decodes bitLength bits of data starting at bitOffset as a packet of
// kind k, recursing into every payload the dispatch table recognises. The
// result is nil whenever err is non-nil.
func Decode(k Kind, data []byte, bitOffset, bitLength int) (Packet, error) {
	p := New(k)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	if err := p.Deserialize(data, bitOffset, bitLength); err != nil {
		return nil, err
	}
	return p, nil
}

// DecodeFrame decodes a whole buffer as a packet of kind k.
func DecodeFrame(k Kind, frame []byte) (Packet, error) {
	return Decode(k, frame, 0, len(frame)*8)
}

// Encode returns the wire bytes of p and its payload chain.
func Encode(p Packet) ([]byte, error) {
	if p == nil {
		return nil, ErrNilPacket
	}
	return p.Serialize()
}

// SetPayload makes inner the structured payload of outer, dropping any raw
// payload. Only Ethernet, IEEE8021Q and IPv4 carry structured payloads.
func SetPayload(outer, inner Packet) error {
	if outer == nil || inner == nil {
		return ErrNilPacket
	}
	if _, ok := Discriminator(outer.Kind(), inner.Kind()); !ok {
		return fmt.Errorf("packet: %s cannot carry %s", outer.Kind(), inner.Kind())
	}
	outer.hdr().setPayload(inner)
	return nil
}

// SetRawPayload replaces any payload of p with a copy of b.
func SetRawPayload(p Packet, b []byte) error {
	if p == nil {
		return ErrNilPacket
	}
	p.hdr().setRaw(b)
	return nil
}

// Chain lists p and its structured payloads, outermost first.
func Chain(p Packet) []Packet {
	var out []Packet
	for p != nil {
		out = append(out, p)
		p = p.Payload()
	}
	return out
}

// AnyCorrupted reports whether any packet in the chain failed checksum
// verification.
func AnyCorrupted(p Packet) bool {
	for _, l := range Chain(p) {
		if l.Corrupted() {
			return true
		}
	}
	return false
}
