// Package core defines core types shared by sources, the frame decoder and
// the CLI.
package core

import "net/netip"

// EthernetHeader summarises the L2 layers of a frame.
type EthernetHeader struct {
	SrcMAC    [6]byte
	DstMAC    [6]byte
	EtherType uint16   // Innermost EtherType after all 802.1Q tags
	VLANs     []uint16 // Outermost first; two entries for QinQ
}

// IPHeader summarises the IPv4 layer.
type IPHeader struct {
	Version        uint8
	SrcIP          netip.Addr
	DstIP          netip.Addr
	Protocol       uint8 // ICMP=1, TCP=6, UDP=17
	TTL            uint8
	TotalLen       uint16
	ID             uint16
	FragmentOffset uint16 // In 8-octet units
	MoreFragments  bool
}

// TransportHeader summarises the ICMP, TCP or UDP layer.
type TransportHeader struct {
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8 // Redundant storage for convenience
	// TCP-specific fields (only populated for TCP)
	TCPFlags uint16
	SeqNum   uint32
	AckNum   uint32
	// ICMP-specific fields (only populated for ICMP)
	ICMPType uint8
	ICMPCode uint8
}

// ARPHeader summarises an ARP message carrying IPv4 addresses.
type ARPHeader struct {
	Operation uint16
	SenderMAC []byte
	SenderIP  netip.Addr
	TargetMAC []byte
	TargetIP  netip.Addr
}
