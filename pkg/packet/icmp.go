package packet

import (
	"fmt"

	"firestige.xyz/otus-codec/pkg/bitfield"
	"firestige.xyz/otus-codec/pkg/checksum"
)

const (
	icmpType = iota
	icmpCode
	icmpChecksum
	icmpIdentifier
	icmpSequenceNumber
)

var icmpFields = []FieldDescriptor{
	icmpType:           {Name: "Type", BitOffset: 0, BitWidth: 8},
	icmpCode:           {Name: "Code", BitOffset: 8, BitWidth: 8},
	icmpChecksum:       {Name: "Checksum", BitOffset: 16, BitWidth: 16},
	icmpIdentifier:     {Name: "Identifier", BitOffset: 32, BitWidth: 16},
	icmpSequenceNumber: {Name: "SequenceNumber", BitOffset: 48, BitWidth: 16},
}

// ICMP is an ICMP message with the echo-style header. Everything after the
// header is raw payload. The checksum covers header and payload and is
// recomputed on every Serialize.
type ICMP struct {
	header
	typ        uint8
	code       uint8
	checksum   uint16
	identifier uint16
	sequence   uint16
}

func NewICMP() *ICMP { return &ICMP{} }

func (c *ICMP) Kind() Kind { return KindICMP }

func (c *ICMP) Fields() []FieldDescriptor { return copyFields(icmpFields) }

func (c *ICMP) HeaderBits() int { return icmpHeaderBits }

func (c *ICMP) Type() uint8            { return c.typ }
func (c *ICMP) Code() uint8            { return c.code }
func (c *ICMP) Checksum() uint16       { return c.checksum }
func (c *ICMP) Identifier() uint16     { return c.identifier }
func (c *ICMP) SequenceNumber() uint16 { return c.sequence }

func (c *ICMP) SetType(t uint8) *ICMP {
	c.typ = t
	return c
}

func (c *ICMP) SetCode(code uint8) *ICMP {
	c.code = code
	return c
}

// SetChecksum stores a checksum value. Serialize overwrites it.
func (c *ICMP) SetChecksum(cs uint16) *ICMP {
	c.checksum = cs
	return c
}

func (c *ICMP) SetIdentifier(id uint16) *ICMP {
	c.identifier = id
	return c
}

func (c *ICMP) SetSequenceNumber(seq uint16) *ICMP {
	c.sequence = seq
	return c
}

func (c *ICMP) SetRawPayload(b []byte) *ICMP {
	c.setRaw(b)
	return c
}

func (c *ICMP) Serialize() ([]byte, error) {
	w := fieldWriter{buf: make([]byte, icmpHeaderBits/8)}
	w.put(icmpFields[icmpType], uint64(c.typ))
	w.put(icmpFields[icmpCode], uint64(c.code))
	w.put(icmpFields[icmpIdentifier], uint64(c.identifier))
	w.put(icmpFields[icmpSequenceNumber], uint64(c.sequence))
	if w.err != nil {
		return nil, encodeFailed(KindICMP, w.err)
	}
	out, err := c.appendPayload(w.buf)
	if err != nil {
		return nil, err
	}
	cs := checksum.Checksum(out)
	f := icmpFields[icmpChecksum]
	if err := bitfield.Write(out, f.BitOffset, f.BitWidth, uint64(cs)); err != nil {
		return nil, encodeFailed(KindICMP, err)
	}
	c.checksum = cs
	return out, nil
}

func (c *ICMP) Deserialize(data []byte, bitOffset, bitLength int) error {
	if err := checkBounds(KindICMP, data, bitOffset, bitLength, icmpHeaderBits); err != nil {
		return err
	}
	r := fieldReader{buf: data, base: bitOffset}
	var f ICMP
	f.typ = uint8(r.get(icmpFields[icmpType]))
	f.code = uint8(r.get(icmpFields[icmpCode]))
	f.checksum = uint16(r.get(icmpFields[icmpChecksum]))
	f.identifier = uint16(r.get(icmpFields[icmpIdentifier]))
	f.sequence = uint16(r.get(icmpFields[icmpSequenceNumber]))
	if r.err != nil {
		return decodeFailed(KindICMP, r.err)
	}
	msg, err := readBytes(data, bitOffset, bitLength/8*8)
	if err != nil {
		return decodeFailed(KindICMP, err)
	}
	f.corrupted = !checksum.Verify(msg)
	err = f.decodePayload(KindICMP, 0, false, data, bitOffset+icmpHeaderBits, bitLength-icmpHeaderBits)
	if err != nil {
		return err
	}
	*c = f
	return nil
}

func (c *ICMP) Clone() Packet {
	n := *c
	n.header = c.header.clone()
	return &n
}

func (c *ICMP) Equal(other Packet) bool {
	o, ok := other.(*ICMP)
	if !ok || o == nil {
		return false
	}
	return c.typ == o.typ && c.code == o.code && c.checksum == o.checksum &&
		c.identifier == o.identifier && c.sequence == o.sequence &&
		c.header.equal(&o.header)
}

func (c *ICMP) Hash() uint64 {
	f := newHasher(KindICMP)
	f.u64(uint64(c.typ))
	f.u64(uint64(c.code))
	f.u64(uint64(c.checksum))
	f.u64(uint64(c.identifier))
	f.u64(uint64(c.sequence))
	c.hashInto(f)
	return f.sum64()
}

func (c *ICMP) String() string {
	return fmt.Sprintf("ICMP{Type=%d Code=%d Checksum=0x%04x Identifier=0x%04x SequenceNumber=%d}",
		c.typ, c.code, c.checksum, c.identifier, c.sequence)
}
