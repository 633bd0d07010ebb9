package packet

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"

	"firestige.xyz/otus-codec/pkg/checksum"
)

const (
	ipv4Version = iota
	ipv4HeaderLength
	ipv4DiffServ
	ipv4ECN
	ipv4TotalLength
	ipv4Identification
	ipv4Flags
	ipv4FragmentOffset
	ipv4TTL
	ipv4Protocol
	ipv4Checksum
	ipv4SourceAddress
	ipv4DestinationAddress
)

var ipv4Fields = []FieldDescriptor{
	ipv4Version:            {Name: "Version", BitOffset: 0, BitWidth: 4},
	ipv4HeaderLength:       {Name: "HeaderLength", BitOffset: 4, BitWidth: 4},
	ipv4DiffServ:           {Name: "DiffServ", BitOffset: 8, BitWidth: 6},
	ipv4ECN:                {Name: "ECN", BitOffset: 14, BitWidth: 2},
	ipv4TotalLength:        {Name: "TotalLength", BitOffset: 16, BitWidth: 16},
	ipv4Identification:     {Name: "Identification", BitOffset: 32, BitWidth: 16},
	ipv4Flags:              {Name: "Flags", BitOffset: 48, BitWidth: 3},
	ipv4FragmentOffset:     {Name: "FragmentOffset", BitOffset: 51, BitWidth: 13},
	ipv4TTL:                {Name: "TTL", BitOffset: 64, BitWidth: 8},
	ipv4Protocol:           {Name: "Protocol", BitOffset: 72, BitWidth: 8},
	ipv4Checksum:           {Name: "Checksum", BitOffset: 80, BitWidth: 16},
	ipv4SourceAddress:      {Name: "SourceAddress", BitOffset: 96, BitWidth: 32},
	ipv4DestinationAddress: {Name: "DestinationAddress", BitOffset: 128, BitWidth: 32},
}

var errNotIPv4Address = errors.New("not an IPv4 address")

// ipv4HeaderBits converts the HeaderLength field (32-bit words) to bits. A
// value below the minimum still occupies the fixed 20-octet header.
func ipv4HeaderBits(words uint8) int {
	return max(int(words)*32, ipv4MinHeaderBits)
}

func ipv4OptionsField(hdrBits int) FieldDescriptor {
	return FieldDescriptor{Name: "Options", BitOffset: ipv4MinHeaderBits, BitWidth: hdrBits - ipv4MinHeaderBits}
}

// IPv4 is an Internet Protocol version 4 header. The header checksum is
// recomputed on every Serialize and verified on Deserialize.
type IPv4 struct {
	header
	version        uint8
	headerLength   uint8
	diffServ       uint8
	ecn            uint8
	totalLength    uint16
	identification uint16
	flags          uint8
	fragmentOffset uint16
	ttl            uint8
	protocol       uint8
	checksum       uint16
	src            netip.Addr
	dst            netip.Addr
	options        []byte
}

// NewIPv4 returns a header with version 4, a 20-octet header length and the
// don't-fragment flag set.
func NewIPv4() *IPv4 {
	return &IPv4{
		version:      4,
		headerLength: ipv4MinHeaderOctets / 4,
		flags:        IPv4FlagDontFragment,
		src:          netip.IPv4Unspecified(),
		dst:          netip.IPv4Unspecified(),
	}
}

func (ip *IPv4) Kind() Kind { return KindIPv4 }

func (ip *IPv4) Fields() []FieldDescriptor {
	fs := copyFields(ipv4Fields)
	if hdrBits := ip.HeaderBits(); hdrBits > ipv4MinHeaderBits {
		fs = append(fs, ipv4OptionsField(hdrBits))
	}
	return fs
}

func (ip *IPv4) HeaderBits() int { return ipv4HeaderBits(ip.headerLength) }

func (ip *IPv4) Version() uint8                 { return ip.version }
func (ip *IPv4) HeaderLength() uint8            { return ip.headerLength }
func (ip *IPv4) DiffServ() uint8                { return ip.diffServ }
func (ip *IPv4) ECN() uint8                     { return ip.ecn }
func (ip *IPv4) TotalLength() uint16            { return ip.totalLength }
func (ip *IPv4) Identification() uint16         { return ip.identification }
func (ip *IPv4) Flags() uint8                   { return ip.flags }
func (ip *IPv4) FragmentOffset() uint16         { return ip.fragmentOffset }
func (ip *IPv4) TTL() uint8                     { return ip.ttl }
func (ip *IPv4) Protocol() uint8                { return ip.protocol }
func (ip *IPv4) Checksum() uint16               { return ip.checksum }
func (ip *IPv4) SourceAddress() netip.Addr      { return ip.src }
func (ip *IPv4) DestinationAddress() netip.Addr { return ip.dst }

// Options returns a copy of the options, padded to a 4-octet boundary, or nil.
func (ip *IPv4) Options() []byte { return cloneBytes(ip.options) }

func (ip *IPv4) SetVersion(v uint8) *IPv4 {
	ip.version = v
	return ip
}

// SetHeaderLength sets the header length in 32-bit words. Serialize fails
// unless the options fill exactly the octets past the fixed header.
func (ip *IPv4) SetHeaderLength(words uint8) *IPv4 {
	ip.headerLength = words
	return ip
}

func (ip *IPv4) SetDiffServ(ds uint8) *IPv4 {
	ip.diffServ = ds
	return ip
}

func (ip *IPv4) SetECN(ecn uint8) *IPv4 {
	ip.ecn = ecn
	return ip
}

func (ip *IPv4) SetTotalLength(n uint16) *IPv4 {
	ip.totalLength = n
	return ip
}

func (ip *IPv4) SetIdentification(id uint16) *IPv4 {
	ip.identification = id
	return ip
}

func (ip *IPv4) SetFlags(flags uint8) *IPv4 {
	ip.flags = flags
	return ip
}

func (ip *IPv4) SetFragmentOffset(off uint16) *IPv4 {
	ip.fragmentOffset = off
	return ip
}

func (ip *IPv4) SetTTL(ttl uint8) *IPv4 {
	ip.ttl = ttl
	return ip
}

func (ip *IPv4) SetProtocol(p uint8) *IPv4 {
	ip.protocol = p
	return ip
}

// SetChecksum stores a checksum value. Serialize overwrites it.
func (ip *IPv4) SetChecksum(cs uint16) *IPv4 {
	ip.checksum = cs
	return ip
}

// SetSourceAddress sets the source address. IPv4-mapped IPv6 addresses are
// unmapped; any other non-IPv4 address fails at Serialize.
func (ip *IPv4) SetSourceAddress(a netip.Addr) *IPv4 {
	ip.src = a.Unmap()
	return ip
}

func (ip *IPv4) SetDestinationAddress(a netip.Addr) *IPv4 {
	ip.dst = a.Unmap()
	return ip
}

// SetOptions stores a copy of opts right-padded with zero octets to a 4-octet
// boundary and updates HeaderLength to match. More than 40 octets of options
// overflow HeaderLength and fail at Serialize.
func (ip *IPv4) SetOptions(opts []byte) *IPv4 {
	if len(opts) == 0 {
		ip.options = nil
	} else {
		padded := make([]byte, (len(opts)+3)&^3)
		copy(padded, opts)
		ip.options = padded
	}
	ip.headerLength = uint8((ipv4MinHeaderOctets + len(ip.options)) / 4)
	return ip
}

func (ip *IPv4) SetPayload(p Packet) *IPv4 {
	ip.setPayload(p)
	return ip
}

func (ip *IPv4) SetRawPayload(b []byte) *IPv4 {
	ip.setRaw(b)
	return ip
}

// Serialize encodes the header with a freshly computed checksum, which is
// also stored in the packet, followed by the payload.
func (ip *IPv4) Serialize() ([]byte, error) {
	if len(ip.options) > ipv4MaxOptionOctets {
		return nil, encodeFailed(KindIPv4, fmt.Errorf("Options: %d octets exceed %d", len(ip.options), ipv4MaxOptionOctets))
	}
	if want := ipv4HeaderBits(ip.headerLength)/8 - ipv4MinHeaderOctets; len(ip.options) != want {
		return nil, encodeFailed(KindIPv4, fmt.Errorf("Options: %d octets, HeaderLength %d needs %d: %w",
			len(ip.options), ip.headerLength, want, errLengthMismatch))
	}
	src, err := ipv4Bytes(ip.src)
	if err != nil {
		return nil, encodeFailed(KindIPv4, fmt.Errorf("SourceAddress: %w", err))
	}
	dst, err := ipv4Bytes(ip.dst)
	if err != nil {
		return nil, encodeFailed(KindIPv4, fmt.Errorf("DestinationAddress: %w", err))
	}

	hdrBits := ip.HeaderBits()
	w := fieldWriter{buf: make([]byte, hdrBits/8)}
	w.put(ipv4Fields[ipv4Version], uint64(ip.version))
	w.put(ipv4Fields[ipv4HeaderLength], uint64(ip.headerLength))
	w.put(ipv4Fields[ipv4DiffServ], uint64(ip.diffServ))
	w.put(ipv4Fields[ipv4ECN], uint64(ip.ecn))
	w.put(ipv4Fields[ipv4TotalLength], uint64(ip.totalLength))
	w.put(ipv4Fields[ipv4Identification], uint64(ip.identification))
	w.put(ipv4Fields[ipv4Flags], uint64(ip.flags))
	w.put(ipv4Fields[ipv4FragmentOffset], uint64(ip.fragmentOffset))
	w.put(ipv4Fields[ipv4TTL], uint64(ip.ttl))
	w.put(ipv4Fields[ipv4Protocol], uint64(ip.protocol))
	w.putBytes(ipv4Fields[ipv4SourceAddress], src[:])
	w.putBytes(ipv4Fields[ipv4DestinationAddress], dst[:])
	w.putBytes(ipv4OptionsField(hdrBits), ip.options)
	if w.err != nil {
		return nil, encodeFailed(KindIPv4, w.err)
	}
	cs := checksum.Checksum(w.buf)
	w.put(ipv4Fields[ipv4Checksum], uint64(cs))
	ip.checksum = cs
	return ip.appendPayload(w.buf)
}

// Deserialize decodes the header and verifies its checksum. A mismatch only
// sets Corrupted. The payload is decoded as a structured packet only for the
// first fragment (FragmentOffset == 0); later fragments keep it raw.
func (ip *IPv4) Deserialize(data []byte, bitOffset, bitLength int) error {
	if err := checkBounds(KindIPv4, data, bitOffset, bitLength, ipv4MinHeaderBits); err != nil {
		return err
	}
	r := fieldReader{buf: data, base: bitOffset}
	var f IPv4
	f.version = uint8(r.get(ipv4Fields[ipv4Version]))
	f.headerLength = uint8(r.get(ipv4Fields[ipv4HeaderLength]))
	f.diffServ = uint8(r.get(ipv4Fields[ipv4DiffServ]))
	f.ecn = uint8(r.get(ipv4Fields[ipv4ECN]))
	f.totalLength = uint16(r.get(ipv4Fields[ipv4TotalLength]))
	f.identification = uint16(r.get(ipv4Fields[ipv4Identification]))
	f.flags = uint8(r.get(ipv4Fields[ipv4Flags]))
	f.fragmentOffset = uint16(r.get(ipv4Fields[ipv4FragmentOffset]))
	f.ttl = uint8(r.get(ipv4Fields[ipv4TTL]))
	f.protocol = uint8(r.get(ipv4Fields[ipv4Protocol]))
	f.checksum = uint16(r.get(ipv4Fields[ipv4Checksum]))
	f.src = ipv4Addr(r.bytes(ipv4Fields[ipv4SourceAddress]))
	f.dst = ipv4Addr(r.bytes(ipv4Fields[ipv4DestinationAddress]))
	if r.err != nil {
		return decodeFailed(KindIPv4, r.err)
	}

	hdrBits := f.HeaderBits()
	if bitLength < hdrBits {
		return shortBuffer(KindIPv4, hdrBits, bitLength)
	}
	f.options = r.bytes(ipv4OptionsField(hdrBits))
	if r.err != nil {
		return decodeFailed(KindIPv4, r.err)
	}
	hdr, err := readBytes(data, bitOffset, hdrBits)
	if err != nil {
		return decodeFailed(KindIPv4, err)
	}
	f.corrupted = !checksum.Verify(hdr)

	err = f.decodePayload(KindIPv4, uint32(f.protocol), f.fragmentOffset == 0,
		data, bitOffset+hdrBits, bitLength-hdrBits)
	if err != nil {
		return err
	}
	*ip = f
	return nil
}

func (ip *IPv4) Clone() Packet {
	c := *ip
	c.header = ip.header.clone()
	c.options = cloneBytes(ip.options)
	return &c
}

func (ip *IPv4) Equal(other Packet) bool {
	o, ok := other.(*IPv4)
	if !ok || o == nil {
		return false
	}
	return ip.version == o.version && ip.headerLength == o.headerLength &&
		ip.diffServ == o.diffServ && ip.ecn == o.ecn &&
		ip.totalLength == o.totalLength && ip.identification == o.identification &&
		ip.flags == o.flags && ip.fragmentOffset == o.fragmentOffset &&
		ip.ttl == o.ttl && ip.protocol == o.protocol && ip.checksum == o.checksum &&
		ip.src == o.src && ip.dst == o.dst &&
		bytes.Equal(ip.options, o.options) && ip.header.equal(&o.header)
}

func (ip *IPv4) Hash() uint64 {
	f := newHasher(KindIPv4)
	f.u64(uint64(ip.version))
	f.u64(uint64(ip.headerLength))
	f.u64(uint64(ip.diffServ))
	f.u64(uint64(ip.ecn))
	f.u64(uint64(ip.totalLength))
	f.u64(uint64(ip.identification))
	f.u64(uint64(ip.flags))
	f.u64(uint64(ip.fragmentOffset))
	f.u64(uint64(ip.ttl))
	f.u64(uint64(ip.protocol))
	f.u64(uint64(ip.checksum))
	src, _ := ip.src.MarshalBinary()
	dst, _ := ip.dst.MarshalBinary()
	f.bytes(src)
	f.bytes(dst)
	f.bytes(ip.options)
	ip.hashInto(f)
	return f.sum64()
}

func (ip *IPv4) String() string {
	return fmt.Sprintf("IPv4{Version=%d HeaderLength=%d DiffServ=%d ECN=%d TotalLength=%d "+
		"Identification=0x%04x Flags=0b%03b FragmentOffset=%d TTL=%d Protocol=%d Checksum=0x%04x "+
		"SourceAddress=%s DestinationAddress=%s Options=%s}",
		ip.version, ip.headerLength, ip.diffServ, ip.ecn, ip.totalLength,
		ip.identification, ip.flags, ip.fragmentOffset, ip.ttl, ip.protocol, ip.checksum,
		ip.src, ip.dst, hex.EncodeToString(ip.options))
}

func ipv4Bytes(a netip.Addr) ([4]byte, error) {
	if !a.Is4() {
		return [4]byte{}, errNotIPv4Address
	}
	return a.As4(), nil
}

func ipv4Addr(b []byte) netip.Addr {
	var a [4]byte
	copy(a[:], b)
	return netip.AddrFrom4(a)
}
