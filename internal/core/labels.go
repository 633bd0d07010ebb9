// Package core defines core types.
package core

// Labels represents key-value metadata attached by the frame decoder.
type Labels map[string]string

// Label naming constants following {protocol}.{field} convention.
const (
	LabelEthSrc  = "eth.src"
	LabelEthDst  = "eth.dst"
	LabelEthType = "eth.type" // Innermost EtherType (hex, 0xXXXX)
	LabelVLANIDs = "vlan.ids" // Comma-separated, outermost first

	LabelARPOp       = "arp.op" // "request", "reply" or the decimal opcode
	LabelARPSenderIP = "arp.sender_ip"
	LabelARPTargetIP = "arp.target_ip"

	LabelIPSrc       = "ip.src"
	LabelIPDst       = "ip.dst"
	LabelIPProto     = "ip.proto" // Decimal protocol number
	LabelIPTTL       = "ip.ttl"
	LabelIPFragment  = "ip.fragment"  // "true" for any fragment
	LabelIPCorrupted = "ip.corrupted" // Header checksum mismatch ("true")

	LabelICMPType      = "icmp.type"
	LabelICMPCode      = "icmp.code"
	LabelICMPCorrupted = "icmp.corrupted"

	LabelL4SrcPort = "l4.src_port"
	LabelL4DstPort = "l4.dst_port"
	LabelTCPFlags  = "tcp.flags" // e.g. "SYN|ACK"

	LabelReassembled = "ip.reassembled"
)
