package packet

import "fmt"

const (
	udpSourcePort = iota
	udpDestinationPort
	udpLength
	udpChecksum
)

var udpFields = []FieldDescriptor{
	udpSourcePort:      {Name: "SourcePort", BitOffset: 0, BitWidth: 16},
	udpDestinationPort: {Name: "DestinationPort", BitOffset: 16, BitWidth: 16},
	udpLength:          {Name: "Length", BitOffset: 32, BitWidth: 16},
	udpChecksum:        {Name: "Checksum", BitOffset: 48, BitWidth: 16},
}

// UDP is a UDP header. Data is raw payload; the checksum is carried as is.
type UDP struct {
	header
	srcPort  uint16
	dstPort  uint16
	length   uint16
	checksum uint16
}

func NewUDP() *UDP { return &UDP{} }

func (u *UDP) Kind() Kind { return KindUDP }

func (u *UDP) Fields() []FieldDescriptor { return copyFields(udpFields) }

func (u *UDP) HeaderBits() int { return udpHeaderBits }

func (u *UDP) SourcePort() uint16      { return u.srcPort }
func (u *UDP) DestinationPort() uint16 { return u.dstPort }
func (u *UDP) Length() uint16          { return u.length }
func (u *UDP) Checksum() uint16        { return u.checksum }

func (u *UDP) SetSourcePort(p uint16) *UDP {
	u.srcPort = p
	return u
}

func (u *UDP) SetDestinationPort(p uint16) *UDP {
	u.dstPort = p
	return u
}

func (u *UDP) SetLength(n uint16) *UDP {
	u.length = n
	return u
}

func (u *UDP) SetChecksum(cs uint16) *UDP {
	u.checksum = cs
	return u
}

func (u *UDP) SetRawPayload(b []byte) *UDP {
	u.setRaw(b)
	return u
}

func (u *UDP) Serialize() ([]byte, error) {
	w := fieldWriter{buf: make([]byte, udpHeaderBits/8)}
	w.put(udpFields[udpSourcePort], uint64(u.srcPort))
	w.put(udpFields[udpDestinationPort], uint64(u.dstPort))
	w.put(udpFields[udpLength], uint64(u.length))
	w.put(udpFields[udpChecksum], uint64(u.checksum))
	if w.err != nil {
		return nil, encodeFailed(KindUDP, w.err)
	}
	return u.appendPayload(w.buf)
}

func (u *UDP) Deserialize(data []byte, bitOffset, bitLength int) error {
	if err := checkBounds(KindUDP, data, bitOffset, bitLength, udpHeaderBits); err != nil {
		return err
	}
	r := fieldReader{buf: data, base: bitOffset}
	var f UDP
	f.srcPort = uint16(r.get(udpFields[udpSourcePort]))
	f.dstPort = uint16(r.get(udpFields[udpDestinationPort]))
	f.length = uint16(r.get(udpFields[udpLength]))
	f.checksum = uint16(r.get(udpFields[udpChecksum]))
	if r.err != nil {
		return decodeFailed(KindUDP, r.err)
	}
	err := f.decodePayload(KindUDP, 0, false, data, bitOffset+udpHeaderBits, bitLength-udpHeaderBits)
	if err != nil {
		return err
	}
	*u = f
	return nil
}

func (u *UDP) Clone() Packet {
	c := *u
	c.header = u.header.clone()
	return &c
}

func (u *UDP) Equal(other Packet) bool {
	o, ok := other.(*UDP)
	if !ok || o == nil {
		return false
	}
	return u.srcPort == o.srcPort && u.dstPort == o.dstPort &&
		u.length == o.length && u.checksum == o.checksum &&
		u.header.equal(&o.header)
}

func (u *UDP) Hash() uint64 {
	f := newHasher(KindUDP)
	f.u64(uint64(u.srcPort))
	f.u64(uint64(u.dstPort))
	f.u64(uint64(u.length))
	f.u64(uint64(u.checksum))
	u.hashInto(f)
	return f.sum64()
}

func (u *UDP) String() string {
	return fmt.Sprintf("UDP{SourcePort=%d DestinationPort=%d Length=%d Checksum=0x%04x}",
		u.srcPort, u.dstPort, u.length, u.checksum)
}
