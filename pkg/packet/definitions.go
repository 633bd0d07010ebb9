package packet

// EtherType values understood by the dispatch table.
const (
	EtherTypeIPv4      uint16 = 0x0800
	EtherTypeARP       uint16 = 0x0806
	EtherTypeIEEE8021Q uint16 = 0x8100
)

// IP protocol numbers understood by the dispatch table.
const (
	IPProtocolICMP uint8 = 1
	IPProtocolTCP  uint8 = 6
	IPProtocolUDP  uint8 = 17
)

// ARP constants.
const (
	ARPHardwareTypeEthernet uint16 = 1
	ARPOpRequest            uint16 = 1
	ARPOpReply              uint16 = 2
)

// IPv4 flag bits as they appear in the 3-bit Flags field.
const (
	IPv4FlagMoreFragments uint8 = 0b001
	IPv4FlagDontFragment  uint8 = 0b010
)

// ICMP message types.
const (
	ICMPEchoReply   uint8 = 0
	ICMPUnreachable uint8 = 3
	ICMPEchoRequest uint8 = 8
	ICMPTimeExceed  uint8 = 11
)

// TCP flag bits within HeaderLenFlags.
const (
	TCPFlagFIN uint16 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
	TCPFlagNS
)

// Fixed header sizes in bits.
const (
	ethernetHeaderBits = 112
	dot1QHeaderBits    = 32
	arpFixedBits       = 64
	ipv4MinHeaderBits  = 160
	icmpHeaderBits     = 64
	tcpHeaderBits      = 160
	udpHeaderBits      = 64
)

const (
	ipv4MinHeaderOctets = ipv4MinHeaderBits / 8
	ipv4MaxOptionOctets = 40
)
