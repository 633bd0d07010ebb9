package packet

import "fmt"

const (
	dot1QPCP = iota
	dot1QCFI
	dot1QVID
	dot1QEtherType
)

var dot1QFields = []FieldDescriptor{
	dot1QPCP:       {Name: "PCP", BitOffset: 0, BitWidth: 3},
	dot1QCFI:       {Name: "CFI", BitOffset: 3, BitWidth: 1},
	dot1QVID:       {Name: "VID", BitOffset: 4, BitWidth: 12},
	dot1QEtherType: {Name: "EtherType", BitOffset: 16, BitWidth: 16},
}

// IEEE8021Q is an 802.1Q VLAN tag: the TCI word followed by the EtherType of
// the encapsulated frame.
type IEEE8021Q struct {
	header
	pcp       uint8
	cfi       uint8
	vid       uint16
	etherType uint16
}

func NewIEEE8021Q() *IEEE8021Q { return &IEEE8021Q{} }

func (v *IEEE8021Q) Kind() Kind { return KindIEEE8021Q }

func (v *IEEE8021Q) Fields() []FieldDescriptor { return copyFields(dot1QFields) }

func (v *IEEE8021Q) HeaderBits() int { return dot1QHeaderBits }

func (v *IEEE8021Q) PCP() uint8 { return v.pcp }

func (v *IEEE8021Q) CFI() uint8 { return v.cfi }

func (v *IEEE8021Q) VID() uint16 { return v.vid }

func (v *IEEE8021Q) EtherType() uint16 { return v.etherType }

// SetPCP sets the 3-bit priority code point. Values above 7 fail at Serialize.
func (v *IEEE8021Q) SetPCP(pcp uint8) *IEEE8021Q {
	v.pcp = pcp
	return v
}

func (v *IEEE8021Q) SetCFI(cfi uint8) *IEEE8021Q {
	v.cfi = cfi
	return v
}

// SetVID sets the 12-bit VLAN identifier. Values above 0xfff fail at Serialize.
func (v *IEEE8021Q) SetVID(vid uint16) *IEEE8021Q {
	v.vid = vid
	return v
}

func (v *IEEE8021Q) SetEtherType(t uint16) *IEEE8021Q {
	v.etherType = t
	return v
}

func (v *IEEE8021Q) SetPayload(p Packet) *IEEE8021Q {
	v.setPayload(p)
	return v
}

func (v *IEEE8021Q) SetRawPayload(b []byte) *IEEE8021Q {
	v.setRaw(b)
	return v
}

func (v *IEEE8021Q) Serialize() ([]byte, error) {
	w := fieldWriter{buf: make([]byte, dot1QHeaderBits/8)}
	w.put(dot1QFields[dot1QPCP], uint64(v.pcp))
	w.put(dot1QFields[dot1QCFI], uint64(v.cfi))
	w.put(dot1QFields[dot1QVID], uint64(v.vid))
	w.put(dot1QFields[dot1QEtherType], uint64(v.etherType))
	if w.err != nil {
		return nil, encodeFailed(KindIEEE8021Q, w.err)
	}
	return v.appendPayload(w.buf)
}

func (v *IEEE8021Q) Deserialize(data []byte, bitOffset, bitLength int) error {
	if err := checkBounds(KindIEEE8021Q, data, bitOffset, bitLength, dot1QHeaderBits); err != nil {
		return err
	}
	r := fieldReader{buf: data, base: bitOffset}
	var f IEEE8021Q
	f.pcp = uint8(r.get(dot1QFields[dot1QPCP]))
	f.cfi = uint8(r.get(dot1QFields[dot1QCFI]))
	f.vid = uint16(r.get(dot1QFields[dot1QVID]))
	f.etherType = uint16(r.get(dot1QFields[dot1QEtherType]))
	if r.err != nil {
		return decodeFailed(KindIEEE8021Q, r.err)
	}
	err := f.decodePayload(KindIEEE8021Q, uint32(f.etherType), true,
		data, bitOffset+dot1QHeaderBits, bitLength-dot1QHeaderBits)
	if err != nil {
		return err
	}
	*v = f
	return nil
}

func (v *IEEE8021Q) Clone() Packet {
	c := *v
	c.header = v.header.clone()
	return &c
}

func (v *IEEE8021Q) Equal(other Packet) bool {
	o, ok := other.(*IEEE8021Q)
	if !ok || o == nil {
		return false
	}
	return v.pcp == o.pcp && v.cfi == o.cfi && v.vid == o.vid &&
		v.etherType == o.etherType && v.header.equal(&o.header)
}

func (v *IEEE8021Q) Hash() uint64 {
	f := newHasher(KindIEEE8021Q)
	f.u64(uint64(v.pcp))
	f.u64(uint64(v.cfi))
	f.u64(uint64(v.vid))
	f.u64(uint64(v.etherType))
	v.hashInto(f)
	return f.sum64()
}

func (v *IEEE8021Q) String() string {
	return fmt.Sprintf("IEEE8021Q{PCP=%d CFI=%d VID=%d EtherType=0x%04x}",
		v.pcp, v.cfi, v.vid, v.etherType)
}
