package packet

import "fmt"

const (
	tcpSourcePort = iota
	tcpDestinationPort
	tcpSequenceNumber
	tcpAckNumber
	tcpDataOffset
	tcpReserved
	tcpHeaderLenFlags
	tcpWindowSize
	tcpChecksum
	tcpUrgentPointer
)

var tcpFields = []FieldDescriptor{
	tcpSourcePort:      {Name: "SourcePort", BitOffset: 0, BitWidth: 16},
	tcpDestinationPort: {Name: "DestinationPort", BitOffset: 16, BitWidth: 16},
	tcpSequenceNumber:  {Name: "SequenceNumber", BitOffset: 32, BitWidth: 32},
	tcpAckNumber:       {Name: "AckNumber", BitOffset: 64, BitWidth: 32},
	tcpDataOffset:      {Name: "DataOffset", BitOffset: 96, BitWidth: 4},
	tcpReserved:        {Name: "Reserved", BitOffset: 100, BitWidth: 3},
	tcpHeaderLenFlags:  {Name: "HeaderLenFlags", BitOffset: 103, BitWidth: 9},
	tcpWindowSize:      {Name: "WindowSize", BitOffset: 112, BitWidth: 16},
	tcpChecksum:        {Name: "Checksum", BitOffset: 128, BitWidth: 16},
	tcpUrgentPointer:   {Name: "UrgentPointer", BitOffset: 144, BitWidth: 16},
}

const tcpFlagsMask = 1<<9 - 1

// TCP is the fixed 20-octet TCP header. Options, if any, and data are kept as
// raw payload. The checksum needs the IP pseudo-header and is carried as is.
type TCP struct {
	header
	srcPort        uint16
	dstPort        uint16
	seq            uint32
	ack            uint32
	dataOffset     uint8
	reserved       uint8
	headerLenFlags uint16
	window         uint16
	checksum       uint16
	urgent         uint16
}

func NewTCP() *TCP { return &TCP{} }

func (t *TCP) Kind() Kind { return KindTCP }

func (t *TCP) Fields() []FieldDescriptor { return copyFields(tcpFields) }

func (t *TCP) HeaderBits() int { return tcpHeaderBits }

func (t *TCP) SourcePort() uint16      { return t.srcPort }
func (t *TCP) DestinationPort() uint16 { return t.dstPort }
func (t *TCP) SequenceNumber() uint32  { return t.seq }
func (t *TCP) AckNumber() uint32       { return t.ack }
func (t *TCP) DataOffset() uint8       { return t.dataOffset }
func (t *TCP) Reserved() uint8         { return t.reserved }
func (t *TCP) WindowSize() uint16      { return t.window }
func (t *TCP) Checksum() uint16        { return t.checksum }
func (t *TCP) UrgentPointer() uint16   { return t.urgent }

// HeaderLenFlags returns the low 9 bits of the data-offset/flags word.
func (t *TCP) HeaderLenFlags() uint16 { return t.headerLenFlags }

func (t *TCP) SetSourcePort(p uint16) *TCP {
	t.srcPort = p
	return t
}

func (t *TCP) SetDestinationPort(p uint16) *TCP {
	t.dstPort = p
	return t
}

func (t *TCP) SetSequenceNumber(seq uint32) *TCP {
	t.seq = seq
	return t
}

func (t *TCP) SetAckNumber(ack uint32) *TCP {
	t.ack = ack
	return t
}

func (t *TCP) SetDataOffset(words uint8) *TCP {
	t.dataOffset = words
	return t
}

func (t *TCP) SetReserved(r uint8) *TCP {
	t.reserved = r
	return t
}

// SetHeaderLenFlags keeps only the low 9 bits of flags.
func (t *TCP) SetHeaderLenFlags(flags uint16) *TCP {
	t.headerLenFlags = flags & tcpFlagsMask
	return t
}

func (t *TCP) SetWindowSize(w uint16) *TCP {
	t.window = w
	return t
}

func (t *TCP) SetChecksum(cs uint16) *TCP {
	t.checksum = cs
	return t
}

func (t *TCP) SetUrgentPointer(p uint16) *TCP {
	t.urgent = p
	return t
}

func (t *TCP) SetRawPayload(b []byte) *TCP {
	t.setRaw(b)
	return t
}

func (t *TCP) Serialize() ([]byte, error) {
	w := fieldWriter{buf: make([]byte, tcpHeaderBits/8)}
	w.put(tcpFields[tcpSourcePort], uint64(t.srcPort))
	w.put(tcpFields[tcpDestinationPort], uint64(t.dstPort))
	w.put(tcpFields[tcpSequenceNumber], uint64(t.seq))
	w.put(tcpFields[tcpAckNumber], uint64(t.ack))
	w.put(tcpFields[tcpDataOffset], uint64(t.dataOffset))
	w.put(tcpFields[tcpReserved], uint64(t.reserved))
	w.put(tcpFields[tcpHeaderLenFlags], uint64(t.headerLenFlags&tcpFlagsMask))
	w.put(tcpFields[tcpWindowSize], uint64(t.window))
	w.put(tcpFields[tcpChecksum], uint64(t.checksum))
	w.put(tcpFields[tcpUrgentPointer], uint64(t.urgent))
	if w.err != nil {
		return nil, encodeFailed(KindTCP, w.err)
	}
	return t.appendPayload(w.buf)
}

func (t *TCP) Deserialize(data []byte, bitOffset, bitLength int) error {
	if err := checkBounds(KindTCP, data, bitOffset, bitLength, tcpHeaderBits); err != nil {
		return err
	}
	r := fieldReader{buf: data, base: bitOffset}
	var f TCP
	f.srcPort = uint16(r.get(tcpFields[tcpSourcePort]))
	f.dstPort = uint16(r.get(tcpFields[tcpDestinationPort]))
	f.seq = uint32(r.get(tcpFields[tcpSequenceNumber]))
	f.ack = uint32(r.get(tcpFields[tcpAckNumber]))
	f.dataOffset = uint8(r.get(tcpFields[tcpDataOffset]))
	f.reserved = uint8(r.get(tcpFields[tcpReserved]))
	f.headerLenFlags = uint16(r.get(tcpFields[tcpHeaderLenFlags]))
	f.window = uint16(r.get(tcpFields[tcpWindowSize]))
	f.checksum = uint16(r.get(tcpFields[tcpChecksum]))
	f.urgent = uint16(r.get(tcpFields[tcpUrgentPointer]))
	if r.err != nil {
		return decodeFailed(KindTCP, r.err)
	}
	err := f.decodePayload(KindTCP, 0, false, data, bitOffset+tcpHeaderBits, bitLength-tcpHeaderBits)
	if err != nil {
		return err
	}
	*t = f
	return nil
}

func (t *TCP) Clone() Packet {
	c := *t
	c.header = t.header.clone()
	return &c
}

func (t *TCP) Equal(other Packet) bool {
	o, ok := other.(*TCP)
	if !ok || o == nil {
		return false
	}
	return t.srcPort == o.srcPort && t.dstPort == o.dstPort &&
		t.seq == o.seq && t.ack == o.ack &&
		t.dataOffset == o.dataOffset && t.reserved == o.reserved &&
		t.headerLenFlags == o.headerLenFlags && t.window == o.window &&
		t.checksum == o.checksum && t.urgent == o.urgent &&
		t.header.equal(&o.header)
}

func (t *TCP) Hash() uint64 {
	f := newHasher(KindTCP)
	f.u64(uint64(t.srcPort))
	f.u64(uint64(t.dstPort))
	f.u64(uint64(t.seq))
	f.u64(uint64(t.ack))
	f.u64(uint64(t.dataOffset))
	f.u64(uint64(t.reserved))
	f.u64(uint64(t.headerLenFlags))
	f.u64(uint64(t.window))
	f.u64(uint64(t.checksum))
	f.u64(uint64(t.urgent))
	t.hashInto(f)
	return f.sum64()
}

func (t *TCP) String() string {
	return fmt.Sprintf("TCP{SourcePort=%d DestinationPort=%d SequenceNumber=%d AckNumber=%d "+
		"DataOffset=%d Reserved=%d HeaderLenFlags=0x%03x WindowSize=%d Checksum=0x%04x UrgentPointer=%d}",
		t.srcPort, t.dstPort, t.seq, t.ack, t.dataOffset, t.reserved,
		t.headerLenFlags, t.window, t.checksum, t.urgent)
}
