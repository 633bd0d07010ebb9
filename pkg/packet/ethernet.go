package packet

import (
	"fmt"
	"net"
)

const (
	ethDestinationMAC = iota
	ethSourceMAC
	ethEtherType
)

var ethernetFields = []FieldDescriptor{
	ethDestinationMAC: {Name: "DestinationMAC", BitOffset: 0, BitWidth: 48},
	ethSourceMAC:      {Name: "SourceMAC", BitOffset: 48, BitWidth: 48},
	ethEtherType:      {Name: "EtherType", BitOffset: 96, BitWidth: 16},
}

// Ethernet is an Ethernet II frame header without preamble or FCS.
type Ethernet struct {
	header
	dst       [6]byte
	src       [6]byte
	etherType uint16
}

func NewEthernet() *Ethernet { return &Ethernet{} }

func (e *Ethernet) Kind() Kind { return KindEthernet }

func (e *Ethernet) Fields() []FieldDescriptor { return copyFields(ethernetFields) }

func (e *Ethernet) HeaderBits() int { return ethernetHeaderBits }

func (e *Ethernet) DestinationMAC() [6]byte { return e.dst }

func (e *Ethernet) SourceMAC() [6]byte { return e.src }

func (e *Ethernet) EtherType() uint16 { return e.etherType }

func (e *Ethernet) SetDestinationMAC(mac [6]byte) *Ethernet {
	e.dst = mac
	return e
}

func (e *Ethernet) SetSourceMAC(mac [6]byte) *Ethernet {
	e.src = mac
	return e
}

func (e *Ethernet) SetEtherType(t uint16) *Ethernet {
	e.etherType = t
	return e
}

// SetPayload replaces any payload with p.
func (e *Ethernet) SetPayload(p Packet) *Ethernet {
	e.setPayload(p)
	return e
}

// SetRawPayload replaces any payload with a copy of b.
func (e *Ethernet) SetRawPayload(b []byte) *Ethernet {
	e.setRaw(b)
	return e
}

func (e *Ethernet) Serialize() ([]byte, error) {
	w := fieldWriter{buf: make([]byte, ethernetHeaderBits/8)}
	w.putBytes(ethernetFields[ethDestinationMAC], e.dst[:])
	w.putBytes(ethernetFields[ethSourceMAC], e.src[:])
	w.put(ethernetFields[ethEtherType], uint64(e.etherType))
	if w.err != nil {
		return nil, encodeFailed(KindEthernet, w.err)
	}
	return e.appendPayload(w.buf)
}

func (e *Ethernet) Deserialize(data []byte, bitOffset, bitLength int) error {
	if err := checkBounds(KindEthernet, data, bitOffset, bitLength, ethernetHeaderBits); err != nil {
		return err
	}
	r := fieldReader{buf: data, base: bitOffset}
	var f Ethernet
	copy(f.dst[:], r.bytes(ethernetFields[ethDestinationMAC]))
	copy(f.src[:], r.bytes(ethernetFields[ethSourceMAC]))
	f.etherType = uint16(r.get(ethernetFields[ethEtherType]))
	if r.err != nil {
		return decodeFailed(KindEthernet, r.err)
	}
	err := f.decodePayload(KindEthernet, uint32(f.etherType), true,
		data, bitOffset+ethernetHeaderBits, bitLength-ethernetHeaderBits)
	if err != nil {
		return err
	}
	*e = f
	return nil
}

func (e *Ethernet) Clone() Packet {
	c := *e
	c.header = e.header.clone()
	return &c
}

func (e *Ethernet) Equal(other Packet) bool {
	o, ok := other.(*Ethernet)
	if !ok || o == nil {
		return false
	}
	return e.dst == o.dst && e.src == o.src && e.etherType == o.etherType &&
		e.header.equal(&o.header)
}

func (e *Ethernet) Hash() uint64 {
	f := newHasher(KindEthernet)
	f.bytes(e.dst[:])
	f.bytes(e.src[:])
	f.u64(uint64(e.etherType))
	e.hashInto(f)
	return f.sum64()
}

func (e *Ethernet) String() string {
	return fmt.Sprintf("Ethernet{DestinationMAC=%s SourceMAC=%s EtherType=0x%04x}",
		net.HardwareAddr(e.dst[:]), net.HardwareAddr(e.src[:]), e.etherType)
}
