package craft

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"firestige.xyz/otus-codec/pkg/packet"
)

type layer interface {
	kind() packet.Kind
	// build returns the packet with every explicitly set field applied.
	build() (packet.Packet, error)
	// link derives unset fields from the already attached payload.
	link(p packet.Packet, inner packet.Kind, payloadLen int) error
}

func newLayer(k packet.Kind) layer {
	switch k {
	case packet.KindEthernet:
		return &ethernetLayer{Type: "ethernet"}
	case packet.KindIEEE8021Q:
		return &vlanLayer{Type: "ieee8021q"}
	case packet.KindARP:
		return &arpLayer{Type: "arp"}
	case packet.KindIPv4:
		return &ipv4Layer{Type: "ipv4"}
	case packet.KindICMP:
		return &icmpLayer{Type: "icmp"}
	case packet.KindTCP:
		return &tcpLayer{Type: "tcp"}
	case packet.KindUDP:
		return &udpLayer{Type: "udp"}
	}
	return nil
}

func field(name string, v *uint64, bits int) (uint64, bool, error) {
	if v == nil {
		return 0, false, nil
	}
	if bits < 64 && *v >= 1<<bits {
		return 0, false, fmt.Errorf("%s: %d does not fit in %d bits", name, *v, bits)
	}
	return *v, true, nil
}

func u64(v uint64) *uint64 { return &v }

// fieldSet applies the set fields of a layer in order and keeps the first
// width error.
type fieldSet struct{ err error }

func (f *fieldSet) apply(name string, v *uint64, bits int, set func(uint64)) {
	if f.err != nil {
		return
	}
	n, ok, err := field(name, v, bits)
	if err != nil {
		f.err = err
		return
	}
	if ok {
		set(n)
	}
}

func parseMAC(name, s string) ([6]byte, error) {
	var mac [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil {
		return mac, fmt.Errorf("%s: %w", name, err)
	}
	if len(hw) != 6 {
		return mac, fmt.Errorf("%s: %q is not a 48-bit MAC address", name, s)
	}
	copy(mac[:], hw)
	return mac, nil
}

func formatMAC(mac [6]byte) string { return net.HardwareAddr(mac[:]).String() }

func parseIPv4(name, s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%s: %w", name, err)
	}
	if !addr.Unmap().Is4() {
		return netip.Addr{}, fmt.Errorf("%s: %s is not an IPv4 address", name, s)
	}
	return addr, nil
}

// parseAddress accepts an IPv4 address, a MAC address or plain hex.
func parseAddress(name, s string) ([]byte, error) {
	if addr, err := netip.ParseAddr(s); err == nil && addr.Unmap().Is4() {
		b := addr.Unmap().As4()
		return b[:], nil
	}
	if hw, err := net.ParseMAC(s); err == nil {
		return []byte(hw), nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an address", name, s)
	}
	return b, nil
}

// formatAddress is the inverse of parseAddress for the common lengths.
func formatAddress(b []byte) string {
	switch len(b) {
	case 4:
		return netip.AddrFrom4([4]byte(b)).String()
	case 6:
		return net.HardwareAddr(b).String()
	}
	return hex.EncodeToString(b)
}

// linkEtherType sets an unset EtherType from the structured payload.
func linkEtherType(set bool, inner packet.Kind, outer packet.Kind, apply func(uint16)) {
	if set || inner == packet.KindUnknown {
		return
	}
	if v, ok := packet.Discriminator(outer, inner); ok {
		apply(uint16(v))
	}
}

type ethernetLayer struct {
	Type           string  `yaml:"type" mapstructure:"-"`
	DestinationMAC string  `yaml:"destination_mac,omitempty" mapstructure:"destination_mac"`
	SourceMAC      string  `yaml:"source_mac,omitempty" mapstructure:"source_mac"`
	EtherType      *uint64 `yaml:"ether_type,omitempty" mapstructure:"ether_type"`
}

func (l *ethernetLayer) kind() packet.Kind { return packet.KindEthernet }

func (l *ethernetLayer) build() (packet.Packet, error) {
	eth := packet.NewEthernet()
	if l.DestinationMAC != "" {
		mac, err := parseMAC("destination_mac", l.DestinationMAC)
		if err != nil {
			return nil, err
		}
		eth.SetDestinationMAC(mac)
	}
	if l.SourceMAC != "" {
		mac, err := parseMAC("source_mac", l.SourceMAC)
		if err != nil {
			return nil, err
		}
		eth.SetSourceMAC(mac)
	}
	var fs fieldSet
	fs.apply("ether_type", l.EtherType, 16, func(v uint64) { eth.SetEtherType(uint16(v)) })
	return eth, fs.err
}

func (l *ethernetLayer) link(p packet.Packet, inner packet.Kind, _ int) error {
	linkEtherType(l.EtherType != nil, inner, packet.KindEthernet, func(v uint16) {
		p.(*packet.Ethernet).SetEtherType(v)
	})
	return nil
}

type vlanLayer struct {
	Type      string  `yaml:"type" mapstructure:"-"`
	PCP       *uint64 `yaml:"pcp,omitempty" mapstructure:"pcp"`
	CFI       *uint64 `yaml:"cfi,omitempty" mapstructure:"cfi"`
	VID       *uint64 `yaml:"vid,omitempty" mapstructure:"vid"`
	EtherType *uint64 `yaml:"ether_type,omitempty" mapstructure:"ether_type"`
}

func (l *vlanLayer) kind() packet.Kind { return packet.KindIEEE8021Q }

func (l *vlanLayer) build() (packet.Packet, error) {
	tag := packet.NewIEEE8021Q()
	var fs fieldSet
	fs.apply("pcp", l.PCP, 3, func(v uint64) { tag.SetPCP(uint8(v)) })
	fs.apply("cfi", l.CFI, 1, func(v uint64) { tag.SetCFI(uint8(v)) })
	fs.apply("vid", l.VID, 12, func(v uint64) { tag.SetVID(uint16(v)) })
	fs.apply("ether_type", l.EtherType, 16, func(v uint64) { tag.SetEtherType(uint16(v)) })
	return tag, fs.err
}

func (l *vlanLayer) link(p packet.Packet, inner packet.Kind, _ int) error {
	linkEtherType(l.EtherType != nil, inner, packet.KindIEEE8021Q, func(v uint16) {
		p.(*packet.IEEE8021Q).SetEtherType(v)
	})
	return nil
}

type arpLayer struct {
	Type                  string  `yaml:"type" mapstructure:"-"`
	HardwareType          *uint64 `yaml:"hardware_type,omitempty" mapstructure:"hardware_type"`
	ProtocolType          *uint64 `yaml:"protocol_type,omitempty" mapstructure:"protocol_type"`
	HardwareAddressLength *uint64 `yaml:"hardware_address_length,omitempty" mapstructure:"hardware_address_length"`
	ProtocolAddressLength *uint64 `yaml:"protocol_address_length,omitempty" mapstructure:"protocol_address_length"`
	OpCode                *uint64 `yaml:"op_code,omitempty" mapstructure:"op_code"`
	SenderHardwareAddress string  `yaml:"sender_hardware_address,omitempty" mapstructure:"sender_hardware_address"`
	SenderProtocolAddress string  `yaml:"sender_protocol_address,omitempty" mapstructure:"sender_protocol_address"`
	TargetHardwareAddress string  `yaml:"target_hardware_address,omitempty" mapstructure:"target_hardware_address"`
	TargetProtocolAddress string  `yaml:"target_protocol_address,omitempty" mapstructure:"target_protocol_address"`
}

func (l *arpLayer) kind() packet.Kind { return packet.KindARP }

func (l *arpLayer) build() (packet.Packet, error) {
	addrs := make([][]byte, 4)
	for i, a := range []struct{ name, value string }{
		{"sender_hardware_address", l.SenderHardwareAddress},
		{"sender_protocol_address", l.SenderProtocolAddress},
		{"target_hardware_address", l.TargetHardwareAddress},
		{"target_protocol_address", l.TargetProtocolAddress},
	} {
		if a.value == "" {
			continue
		}
		b, err := parseAddress(a.name, a.value)
		if err != nil {
			return nil, err
		}
		addrs[i] = b
	}

	// Unset lengths follow the longer of the two addresses of each type.
	hlen := uint64(max(len(addrs[0]), len(addrs[2])))
	plen := uint64(max(len(addrs[1]), len(addrs[3])))
	if l.HardwareAddressLength == nil {
		l.HardwareAddressLength = u64(hlen)
	}
	if l.ProtocolAddressLength == nil {
		l.ProtocolAddressLength = u64(plen)
	}

	arp := packet.NewARP()
	var fs fieldSet
	fs.apply("hardware_type", l.HardwareType, 16, func(v uint64) { arp.SetHardwareType(uint16(v)) })
	fs.apply("protocol_type", l.ProtocolType, 16, func(v uint64) { arp.SetProtocolType(uint16(v)) })
	fs.apply("hardware_address_length", l.HardwareAddressLength, 8, func(v uint64) { arp.SetHardwareAddressLength(uint8(v)) })
	fs.apply("protocol_address_length", l.ProtocolAddressLength, 8, func(v uint64) { arp.SetProtocolAddressLength(uint8(v)) })
	fs.apply("op_code", l.OpCode, 16, func(v uint64) { arp.SetOpCode(uint16(v)) })
	if fs.err != nil {
		return nil, fs.err
	}

	// Short addresses are zero-padded to the declared length.
	pad := func(b []byte, n uint8) []byte {
		out := make([]byte, max(int(n), len(b)))
		copy(out, b)
		return out
	}
	arp.SetSenderHardwareAddress(pad(addrs[0], arp.HardwareAddressLength())).
		SetSenderProtocolAddress(pad(addrs[1], arp.ProtocolAddressLength())).
		SetTargetHardwareAddress(pad(addrs[2], arp.HardwareAddressLength())).
		SetTargetProtocolAddress(pad(addrs[3], arp.ProtocolAddressLength()))
	return arp, nil
}

func (l *arpLayer) link(packet.Packet, packet.Kind, int) error { return nil }

type ipv4Layer struct {
	Type           string  `yaml:"type" mapstructure:"-"`
	Version        *uint64 `yaml:"version,omitempty" mapstructure:"version"`
	HeaderLength   *uint64 `yaml:"header_length,omitempty" mapstructure:"header_length"`
	DiffServ       *uint64 `yaml:"diff_serv,omitempty" mapstructure:"diff_serv"`
	ECN            *uint64 `yaml:"ecn,omitempty" mapstructure:"ecn"`
	TotalLength    *uint64 `yaml:"total_length,omitempty" mapstructure:"total_length"`
	Identification *uint64 `yaml:"identification,omitempty" mapstructure:"identification"`
	Flags          *uint64 `yaml:"flags,omitempty" mapstructure:"flags"`
	FragmentOffset *uint64 `yaml:"fragment_offset,omitempty" mapstructure:"fragment_offset"`
	TTL            *uint64 `yaml:"ttl,omitempty" mapstructure:"ttl"`
	Protocol       *uint64 `yaml:"protocol,omitempty" mapstructure:"protocol"`
	Checksum       *uint64 `yaml:"checksum,omitempty" mapstructure:"checksum"`
	Source         string  `yaml:"source,omitempty" mapstructure:"source"`
	Destination    string  `yaml:"destination,omitempty" mapstructure:"destination"`
	Options        string  `yaml:"options,omitempty" mapstructure:"options"`
}

func (l *ipv4Layer) kind() packet.Kind { return packet.KindIPv4 }

func (l *ipv4Layer) build() (packet.Packet, error) {
	ip := packet.NewIPv4()
	if l.Source != "" {
		addr, err := parseIPv4("source", l.Source)
		if err != nil {
			return nil, err
		}
		ip.SetSourceAddress(addr)
	}
	if l.Destination != "" {
		addr, err := parseIPv4("destination", l.Destination)
		if err != nil {
			return nil, err
		}
		ip.SetDestinationAddress(addr)
	}
	if l.Options != "" {
		opts, err := hex.DecodeString(strings.TrimPrefix(l.Options, "0x"))
		if err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		ip.SetOptions(opts)
	}

	var fs fieldSet
	fs.apply("version", l.Version, 4, func(v uint64) { ip.SetVersion(uint8(v)) })
	fs.apply("header_length", l.HeaderLength, 4, func(v uint64) { ip.SetHeaderLength(uint8(v)) })
	fs.apply("diff_serv", l.DiffServ, 6, func(v uint64) { ip.SetDiffServ(uint8(v)) })
	fs.apply("ecn", l.ECN, 2, func(v uint64) { ip.SetECN(uint8(v)) })
	fs.apply("total_length", l.TotalLength, 16, func(v uint64) { ip.SetTotalLength(uint16(v)) })
	fs.apply("identification", l.Identification, 16, func(v uint64) { ip.SetIdentification(uint16(v)) })
	fs.apply("flags", l.Flags, 3, func(v uint64) { ip.SetFlags(uint8(v)) })
	fs.apply("fragment_offset", l.FragmentOffset, 13, func(v uint64) { ip.SetFragmentOffset(uint16(v)) })
	fs.apply("ttl", l.TTL, 8, func(v uint64) { ip.SetTTL(uint8(v)) })
	fs.apply("protocol", l.Protocol, 8, func(v uint64) { ip.SetProtocol(uint8(v)) })
	fs.apply("checksum", l.Checksum, 16, func(v uint64) { ip.SetChecksum(uint16(v)) })
	return ip, fs.err
}

func (l *ipv4Layer) link(p packet.Packet, inner packet.Kind, payloadLen int) error {
	ip := p.(*packet.IPv4)
	if l.Protocol == nil && inner != packet.KindUnknown {
		if v, ok := packet.Discriminator(packet.KindIPv4, inner); ok {
			ip.SetProtocol(uint8(v))
		}
	}
	if l.TotalLength == nil {
		n := ip.HeaderBits()/8 + payloadLen
		if n > 0xffff {
			return fmt.Errorf("total_length: %d octets do not fit in 16 bits", n)
		}
		ip.SetTotalLength(uint16(n))
	}
	return nil
}

type icmpLayer struct {
	Type           string  `yaml:"type" mapstructure:"-"`
	ICMPType       *uint64 `yaml:"icmp_type,omitempty" mapstructure:"icmp_type"`
	Code           *uint64 `yaml:"code,omitempty" mapstructure:"code"`
	Checksum       *uint64 `yaml:"checksum,omitempty" mapstructure:"checksum"`
	Identifier     *uint64 `yaml:"identifier,omitempty" mapstructure:"identifier"`
	SequenceNumber *uint64 `yaml:"sequence_number,omitempty" mapstructure:"sequence_number"`
}

func (l *icmpLayer) kind() packet.Kind { return packet.KindICMP }

func (l *icmpLayer) build() (packet.Packet, error) {
	icmp := packet.NewICMP()
	var fs fieldSet
	fs.apply("icmp_type", l.ICMPType, 8, func(v uint64) { icmp.SetType(uint8(v)) })
	fs.apply("code", l.Code, 8, func(v uint64) { icmp.SetCode(uint8(v)) })
	fs.apply("checksum", l.Checksum, 16, func(v uint64) { icmp.SetChecksum(uint16(v)) })
	fs.apply("identifier", l.Identifier, 16, func(v uint64) { icmp.SetIdentifier(uint16(v)) })
	fs.apply("sequence_number", l.SequenceNumber, 16, func(v uint64) { icmp.SetSequenceNumber(uint16(v)) })
	return icmp, fs.err
}

func (l *icmpLayer) link(packet.Packet, packet.Kind, int) error { return nil }

var tcpFlagNames = []struct {
	name string
	flag uint16
}{
	{"FIN", packet.TCPFlagFIN},
	{"SYN", packet.TCPFlagSYN},
	{"RST", packet.TCPFlagRST},
	{"PSH", packet.TCPFlagPSH},
	{"ACK", packet.TCPFlagACK},
	{"URG", packet.TCPFlagURG},
	{"ECE", packet.TCPFlagECE},
	{"CWR", packet.TCPFlagCWR},
	{"NS", packet.TCPFlagNS},
}

func parseTCPFlags(names []string) (uint16, error) {
	var out uint16
next:
	for _, n := range names {
		for _, f := range tcpFlagNames {
			if strings.EqualFold(n, f.name) {
				out |= f.flag
				continue next
			}
		}
		return 0, fmt.Errorf("flags: unknown TCP flag %q", n)
	}
	return out, nil
}

func tcpFlagList(v uint16) []string {
	var out []string
	for _, f := range tcpFlagNames {
		if v&f.flag != 0 {
			out = append(out, f.name)
		}
	}
	return out
}

type tcpLayer struct {
	Type            string   `yaml:"type" mapstructure:"-"`
	SourcePort      *uint64  `yaml:"source_port,omitempty" mapstructure:"source_port"`
	DestinationPort *uint64  `yaml:"destination_port,omitempty" mapstructure:"destination_port"`
	SequenceNumber  *uint64  `yaml:"sequence_number,omitempty" mapstructure:"sequence_number"`
	AckNumber       *uint64  `yaml:"ack_number,omitempty" mapstructure:"ack_number"`
	DataOffset      *uint64  `yaml:"data_offset,omitempty" mapstructure:"data_offset"`
	Reserved        *uint64  `yaml:"reserved,omitempty" mapstructure:"reserved"`
	HeaderLenFlags  *uint64  `yaml:"header_len_flags,omitempty" mapstructure:"header_len_flags"`
	Flags           []string `yaml:"flags,omitempty" mapstructure:"flags"`
	WindowSize      *uint64  `yaml:"window_size,omitempty" mapstructure:"window_size"`
	Checksum        *uint64  `yaml:"checksum,omitempty" mapstructure:"checksum"`
	UrgentPointer   *uint64  `yaml:"urgent_pointer,omitempty" mapstructure:"urgent_pointer"`
}

func (l *tcpLayer) kind() packet.Kind { return packet.KindTCP }

func (l *tcpLayer) build() (packet.Packet, error) {
	if l.HeaderLenFlags != nil && l.Flags != nil {
		return nil, fmt.Errorf("flags and header_len_flags are mutually exclusive")
	}
	if l.Flags != nil {
		v, err := parseTCPFlags(l.Flags)
		if err != nil {
			return nil, err
		}
		l.HeaderLenFlags = u64(uint64(v))
	}
	if l.DataOffset == nil {
		l.DataOffset = u64(5)
	}

	tcp := packet.NewTCP()
	var fs fieldSet
	fs.apply("source_port", l.SourcePort, 16, func(v uint64) { tcp.SetSourcePort(uint16(v)) })
	fs.apply("destination_port", l.DestinationPort, 16, func(v uint64) { tcp.SetDestinationPort(uint16(v)) })
	fs.apply("sequence_number", l.SequenceNumber, 32, func(v uint64) { tcp.SetSequenceNumber(uint32(v)) })
	fs.apply("ack_number", l.AckNumber, 32, func(v uint64) { tcp.SetAckNumber(uint32(v)) })
	fs.apply("data_offset", l.DataOffset, 4, func(v uint64) { tcp.SetDataOffset(uint8(v)) })
	fs.apply("reserved", l.Reserved, 3, func(v uint64) { tcp.SetReserved(uint8(v)) })
	fs.apply("header_len_flags", l.HeaderLenFlags, 9, func(v uint64) { tcp.SetHeaderLenFlags(uint16(v)) })
	fs.apply("window_size", l.WindowSize, 16, func(v uint64) { tcp.SetWindowSize(uint16(v)) })
	fs.apply("checksum", l.Checksum, 16, func(v uint64) { tcp.SetChecksum(uint16(v)) })
	fs.apply("urgent_pointer", l.UrgentPointer, 16, func(v uint64) { tcp.SetUrgentPointer(uint16(v)) })
	return tcp, fs.err
}

func (l *tcpLayer) link(packet.Packet, packet.Kind, int) error { return nil }

type udpLayer struct {
	Type            string  `yaml:"type" mapstructure:"-"`
	SourcePort      *uint64 `yaml:"source_port,omitempty" mapstructure:"source_port"`
	DestinationPort *uint64 `yaml:"destination_port,omitempty" mapstructure:"destination_port"`
	Length          *uint64 `yaml:"length,omitempty" mapstructure:"length"`
	Checksum        *uint64 `yaml:"checksum,omitempty" mapstructure:"checksum"`
}

func (l *udpLayer) kind() packet.Kind { return packet.KindUDP }

func (l *udpLayer) build() (packet.Packet, error) {
	udp := packet.NewUDP()
	var fs fieldSet
	fs.apply("source_port", l.SourcePort, 16, func(v uint64) { udp.SetSourcePort(uint16(v)) })
	fs.apply("destination_port", l.DestinationPort, 16, func(v uint64) { udp.SetDestinationPort(uint16(v)) })
	fs.apply("length", l.Length, 16, func(v uint64) { udp.SetLength(uint16(v)) })
	fs.apply("checksum", l.Checksum, 16, func(v uint64) { udp.SetChecksum(uint16(v)) })
	return udp, fs.err
}

func (l *udpLayer) link(p packet.Packet, _ packet.Kind, payloadLen int) error {
	if l.Length != nil {
		return nil
	}
	n := p.HeaderBits()/8 + payloadLen
	if n > 0xffff {
		return fmt.Errorf("length: %d octets do not fit in 16 bits", n)
	}
	p.(*packet.UDP).SetLength(uint16(n))
	return nil
}

// describeLayer lists every header field of p explicitly.
func describeLayer(p packet.Packet) interface{} {
	switch v := p.(type) {
	case *packet.Ethernet:
		return &ethernetLayer{
			Type:           "ethernet",
			DestinationMAC: formatMAC(v.DestinationMAC()),
			SourceMAC:      formatMAC(v.SourceMAC()),
			EtherType:      u64(uint64(v.EtherType())),
		}
	case *packet.IEEE8021Q:
		return &vlanLayer{
			Type:      "ieee8021q",
			PCP:       u64(uint64(v.PCP())),
			CFI:       u64(uint64(v.CFI())),
			VID:       u64(uint64(v.VID())),
			EtherType: u64(uint64(v.EtherType())),
		}
	case *packet.ARP:
		return &arpLayer{
			Type:                  "arp",
			HardwareType:          u64(uint64(v.HardwareType())),
			ProtocolType:          u64(uint64(v.ProtocolType())),
			HardwareAddressLength: u64(uint64(v.HardwareAddressLength())),
			ProtocolAddressLength: u64(uint64(v.ProtocolAddressLength())),
			OpCode:                u64(uint64(v.OpCode())),
			SenderHardwareAddress: formatAddress(v.SenderHardwareAddress()),
			SenderProtocolAddress: formatAddress(v.SenderProtocolAddress()),
			TargetHardwareAddress: formatAddress(v.TargetHardwareAddress()),
			TargetProtocolAddress: formatAddress(v.TargetProtocolAddress()),
		}
	case *packet.IPv4:
		return &ipv4Layer{
			Type:           "ipv4",
			Version:        u64(uint64(v.Version())),
			HeaderLength:   u64(uint64(v.HeaderLength())),
			DiffServ:       u64(uint64(v.DiffServ())),
			ECN:            u64(uint64(v.ECN())),
			TotalLength:    u64(uint64(v.TotalLength())),
			Identification: u64(uint64(v.Identification())),
			Flags:          u64(uint64(v.Flags())),
			FragmentOffset: u64(uint64(v.FragmentOffset())),
			TTL:            u64(uint64(v.TTL())),
			Protocol:       u64(uint64(v.Protocol())),
			Checksum:       u64(uint64(v.Checksum())),
			Source:         v.SourceAddress().String(),
			Destination:    v.DestinationAddress().String(),
			Options:        hex.EncodeToString(v.Options()),
		}
	case *packet.ICMP:
		return &icmpLayer{
			Type:           "icmp",
			ICMPType:       u64(uint64(v.Type())),
			Code:           u64(uint64(v.Code())),
			Checksum:       u64(uint64(v.Checksum())),
			Identifier:     u64(uint64(v.Identifier())),
			SequenceNumber: u64(uint64(v.SequenceNumber())),
		}
	case *packet.TCP:
		return &tcpLayer{
			Type:            "tcp",
			SourcePort:      u64(uint64(v.SourcePort())),
			DestinationPort: u64(uint64(v.DestinationPort())),
			SequenceNumber:  u64(uint64(v.SequenceNumber())),
			AckNumber:       u64(uint64(v.AckNumber())),
			DataOffset:      u64(uint64(v.DataOffset())),
			Reserved:        u64(uint64(v.Reserved())),
			Flags:           tcpFlagList(v.HeaderLenFlags()),
			WindowSize:      u64(uint64(v.WindowSize())),
			Checksum:        u64(uint64(v.Checksum())),
			UrgentPointer:   u64(uint64(v.UrgentPointer())),
		}
	case *packet.UDP:
		return &udpLayer{
			Type:            "udp",
			SourcePort:      u64(uint64(v.SourcePort())),
			DestinationPort: u64(uint64(v.DestinationPort())),
			Length:          u64(uint64(v.Length())),
			Checksum:        u64(uint64(v.Checksum())),
		}
	}
	return nil
}
