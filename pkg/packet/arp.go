package packet

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

const (
	arpHardwareType = iota
	arpProtocolType
	arpHardwareAddressLength
	arpProtocolAddressLength
	arpOpCode
	arpSenderHardwareAddress
	arpSenderProtocolAddress
	arpTargetHardwareAddress
	arpTargetProtocolAddress
)

var arpFixedFields = []FieldDescriptor{
	arpHardwareType:          {Name: "HardwareType", BitOffset: 0, BitWidth: 16},
	arpProtocolType:          {Name: "ProtocolType", BitOffset: 16, BitWidth: 16},
	arpHardwareAddressLength: {Name: "HardwareAddressLength", BitOffset: 32, BitWidth: 8},
	arpProtocolAddressLength: {Name: "ProtocolAddressLength", BitOffset: 40, BitWidth: 8},
	arpOpCode:                {Name: "OpCode", BitOffset: 48, BitWidth: 16},
}

// arpLayout resolves the address fields, whose widths come from the two
// length fields.
func arpLayout(hlen, plen uint8) []FieldDescriptor {
	hw, pw := int(hlen)*8, int(plen)*8
	fs := make([]FieldDescriptor, 0, 9)
	fs = append(fs, arpFixedFields...)
	off := arpFixedBits
	for _, a := range []struct {
		name  string
		width int
	}{
		{"SenderHardwareAddress", hw},
		{"SenderProtocolAddress", pw},
		{"TargetHardwareAddress", hw},
		{"TargetProtocolAddress", pw},
	} {
		fs = append(fs, FieldDescriptor{Name: a.name, BitOffset: off, BitWidth: a.width})
		off += a.width
	}
	return fs
}

// ARP is an Address Resolution Protocol message. Address widths follow
// HardwareAddressLength and ProtocolAddressLength; the address setters do not
// change those lengths.
type ARP struct {
	header
	hardwareType uint16
	protocolType uint16
	hlen         uint8
	plen         uint8
	opCode       uint16
	sha          []byte
	spa          []byte
	tha          []byte
	tpa          []byte
}

func NewARP() *ARP { return &ARP{} }

func (a *ARP) Kind() Kind { return KindARP }

func (a *ARP) Fields() []FieldDescriptor { return arpLayout(a.hlen, a.plen) }

func (a *ARP) HeaderBits() int { return arpFixedBits + 2*(int(a.hlen)+int(a.plen))*8 }

func (a *ARP) HardwareType() uint16          { return a.hardwareType }
func (a *ARP) ProtocolType() uint16          { return a.protocolType }
func (a *ARP) HardwareAddressLength() uint8  { return a.hlen }
func (a *ARP) ProtocolAddressLength() uint8  { return a.plen }
func (a *ARP) OpCode() uint16                { return a.opCode }
func (a *ARP) SenderHardwareAddress() []byte { return cloneBytes(a.sha) }
func (a *ARP) SenderProtocolAddress() []byte { return cloneBytes(a.spa) }
func (a *ARP) TargetHardwareAddress() []byte { return cloneBytes(a.tha) }
func (a *ARP) TargetProtocolAddress() []byte { return cloneBytes(a.tpa) }

func (a *ARP) SetHardwareType(t uint16) *ARP {
	a.hardwareType = t
	return a
}

func (a *ARP) SetProtocolType(t uint16) *ARP {
	a.protocolType = t
	return a
}

func (a *ARP) SetHardwareAddressLength(n uint8) *ARP {
	a.hlen = n
	return a
}

func (a *ARP) SetProtocolAddressLength(n uint8) *ARP {
	a.plen = n
	return a
}

func (a *ARP) SetOpCode(op uint16) *ARP {
	a.opCode = op
	return a
}

func (a *ARP) SetSenderHardwareAddress(b []byte) *ARP {
	a.sha = cloneBytes(b)
	return a
}

func (a *ARP) SetSenderProtocolAddress(b []byte) *ARP {
	a.spa = cloneBytes(b)
	return a
}

func (a *ARP) SetTargetHardwareAddress(b []byte) *ARP {
	a.tha = cloneBytes(b)
	return a
}

func (a *ARP) SetTargetProtocolAddress(b []byte) *ARP {
	a.tpa = cloneBytes(b)
	return a
}

// SetRawPayload sets trailing octets, typically Ethernet padding.
func (a *ARP) SetRawPayload(b []byte) *ARP {
	a.setRaw(b)
	return a
}

// Serialize encodes the header. Every address must be exactly as long as
// its declared length field.
func (a *ARP) Serialize() ([]byte, error) {
	for _, addr := range []struct {
		name string
		b    []byte
		want uint8
	}{
		{"SenderHardwareAddress", a.sha, a.hlen},
		{"SenderProtocolAddress", a.spa, a.plen},
		{"TargetHardwareAddress", a.tha, a.hlen},
		{"TargetProtocolAddress", a.tpa, a.plen},
	} {
		if len(addr.b) != int(addr.want) {
			return nil, encodeFailed(KindARP, fmt.Errorf("%s: %d octets, length field says %d: %w",
				addr.name, len(addr.b), addr.want, errLengthMismatch))
		}
	}
	fs := arpLayout(a.hlen, a.plen)
	w := fieldWriter{buf: make([]byte, a.HeaderBits()/8)}
	w.put(fs[arpHardwareType], uint64(a.hardwareType))
	w.put(fs[arpProtocolType], uint64(a.protocolType))
	w.put(fs[arpHardwareAddressLength], uint64(a.hlen))
	w.put(fs[arpProtocolAddressLength], uint64(a.plen))
	w.put(fs[arpOpCode], uint64(a.opCode))
	w.putBytes(fs[arpSenderHardwareAddress], a.sha)
	w.putBytes(fs[arpSenderProtocolAddress], a.spa)
	w.putBytes(fs[arpTargetHardwareAddress], a.tha)
	w.putBytes(fs[arpTargetProtocolAddress], a.tpa)
	if w.err != nil {
		return nil, encodeFailed(KindARP, w.err)
	}
	return a.appendPayload(w.buf)
}

func (a *ARP) Deserialize(data []byte, bitOffset, bitLength int) error {
	if err := checkBounds(KindARP, data, bitOffset, bitLength, arpFixedBits); err != nil {
		return err
	}
	r := fieldReader{buf: data, base: bitOffset}
	var f ARP
	f.hardwareType = uint16(r.get(arpFixedFields[arpHardwareType]))
	f.protocolType = uint16(r.get(arpFixedFields[arpProtocolType]))
	f.hlen = uint8(r.get(arpFixedFields[arpHardwareAddressLength]))
	f.plen = uint8(r.get(arpFixedFields[arpProtocolAddressLength]))
	f.opCode = uint16(r.get(arpFixedFields[arpOpCode]))
	if r.err != nil {
		return decodeFailed(KindARP, r.err)
	}
	hdrBits := f.HeaderBits()
	if bitLength < hdrBits {
		return shortBuffer(KindARP, hdrBits, bitLength)
	}
	fs := arpLayout(f.hlen, f.plen)
	f.sha = r.bytes(fs[arpSenderHardwareAddress])
	f.spa = r.bytes(fs[arpSenderProtocolAddress])
	f.tha = r.bytes(fs[arpTargetHardwareAddress])
	f.tpa = r.bytes(fs[arpTargetProtocolAddress])
	if r.err != nil {
		return decodeFailed(KindARP, r.err)
	}
	err := f.decodePayload(KindARP, 0, false, data, bitOffset+hdrBits, bitLength-hdrBits)
	if err != nil {
		return err
	}
	*a = f
	return nil
}

func (a *ARP) Clone() Packet {
	c := *a
	c.header = a.header.clone()
	c.sha = cloneBytes(a.sha)
	c.spa = cloneBytes(a.spa)
	c.tha = cloneBytes(a.tha)
	c.tpa = cloneBytes(a.tpa)
	return &c
}

func (a *ARP) Equal(other Packet) bool {
	o, ok := other.(*ARP)
	if !ok || o == nil {
		return false
	}
	return a.hardwareType == o.hardwareType && a.protocolType == o.protocolType &&
		a.hlen == o.hlen && a.plen == o.plen && a.opCode == o.opCode &&
		bytes.Equal(a.sha, o.sha) && bytes.Equal(a.spa, o.spa) &&
		bytes.Equal(a.tha, o.tha) && bytes.Equal(a.tpa, o.tpa) &&
		a.header.equal(&o.header)
}

func (a *ARP) Hash() uint64 {
	f := newHasher(KindARP)
	f.u64(uint64(a.hardwareType))
	f.u64(uint64(a.protocolType))
	f.u64(uint64(a.hlen))
	f.u64(uint64(a.plen))
	f.u64(uint64(a.opCode))
	f.bytes(a.sha)
	f.bytes(a.spa)
	f.bytes(a.tha)
	f.bytes(a.tpa)
	a.hashInto(f)
	return f.sum64()
}

func (a *ARP) String() string {
	return fmt.Sprintf("ARP{HardwareType=%d ProtocolType=0x%04x HardwareAddressLength=%d "+
		"ProtocolAddressLength=%d OpCode=%d SenderHardwareAddress=%s SenderProtocolAddress=%s "+
		"TargetHardwareAddress=%s TargetProtocolAddress=%s}",
		a.hardwareType, a.protocolType, a.hlen, a.plen, a.opCode,
		hex.EncodeToString(a.sha), hex.EncodeToString(a.spa),
		hex.EncodeToString(a.tha), hex.EncodeToString(a.tpa))
}
