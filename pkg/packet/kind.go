package packet

import "fmt"

// Kind enumerates the protocols this package encodes and decodes.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindEthernet
	KindIEEE8021Q
	KindARP
	KindIPv4
	KindICMP
	KindTCP
	KindUDP
)

func (k Kind) String() string {
	switch k {
	case KindEthernet:
		return "Ethernet"
	case KindIEEE8021Q:
		return "IEEE8021Q"
	case KindARP:
		return "ARP"
	case KindIPv4:
		return "IPv4"
	case KindICMP:
		return "ICMP"
	case KindTCP:
		return "TCP"
	case KindUDP:
		return "UDP"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind maps a case-sensitive lower-case protocol name to its Kind.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "ethernet", "eth":
		return KindEthernet, true
	case "ieee8021q", "dot1q", "vlan":
		return KindIEEE8021Q, true
	case "arp":
		return KindARP, true
	case "ipv4", "ip":
		return KindIPv4, true
	case "icmp":
		return KindICMP, true
	case "tcp":
		return KindTCP, true
	case "udp":
		return KindUDP, true
	}
	return KindUnknown, false
}

// New returns a default-constructed packet of kind k, or nil if k is unknown.
func New(k Kind) Packet {
	switch k {
	case KindEthernet:
		return NewEthernet()
	case KindIEEE8021Q:
		return NewIEEE8021Q()
	case KindARP:
		return NewARP()
	case KindIPv4:
		return NewIPv4()
	case KindICMP:
		return NewICMP()
	case KindTCP:
		return NewTCP()
	case KindUDP:
		return NewUDP()
	}
	return nil
}

type dispatchKey struct {
	outer Kind
	value uint32
}

// dispatch maps an outer protocol and its discriminator value to the kind of
// the embedded packet. It is never written after package initialisation.
var dispatch = map[dispatchKey]Kind{
	{KindEthernet, uint32(EtherTypeIPv4)}:      KindIPv4,
	{KindEthernet, uint32(EtherTypeARP)}:       KindARP,
	{KindEthernet, uint32(EtherTypeIEEE8021Q)}: KindIEEE8021Q,

	{KindIEEE8021Q, uint32(EtherTypeIPv4)}:      KindIPv4,
	{KindIEEE8021Q, uint32(EtherTypeARP)}:       KindARP,
	{KindIEEE8021Q, uint32(EtherTypeIEEE8021Q)}: KindIEEE8021Q,

	{KindIPv4, uint32(IPProtocolICMP)}: KindICMP,
	{KindIPv4, uint32(IPProtocolTCP)}:  KindTCP,
	{KindIPv4, uint32(IPProtocolUDP)}:  KindUDP,
}

// PayloadKind returns the kind registered for discriminator value under
// outer. ARP, ICMP, TCP and UDP have no entries.
func PayloadKind(outer Kind, value uint32) (Kind, bool) {
	k, ok := dispatch[dispatchKey{outer, value}]
	return k, ok
}

// Discriminator returns the value outer uses to announce inner, the reverse of
// PayloadKind.
func Discriminator(outer, inner Kind) (uint32, bool) {
	for key, k := range dispatch {
		if key.outer == outer && k == inner {
			return key.value, true
		}
	}
	return 0, false
}
