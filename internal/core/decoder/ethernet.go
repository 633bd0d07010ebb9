package decoder

import (
	"net/netip"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/pkg/packet"
)

func summarizeEthernet(eth *packet.Ethernet, h *core.EthernetHeader) {
	h.DstMAC = eth.DestinationMAC()
	h.SrcMAC = eth.SourceMAC()
	h.EtherType = eth.EtherType()
}

// summarizeVLAN records the tag and moves EtherType to the inner value, so
// after the walk EtherType is the innermost one.
func summarizeVLAN(tag *packet.IEEE8021Q, h *core.EthernetHeader) {
	h.VLANs = append(h.VLANs, tag.VID())
	h.EtherType = tag.EtherType()
}

func summarizeARP(a *packet.ARP) *core.ARPHeader {
	h := &core.ARPHeader{
		Operation: a.OpCode(),
		SenderMAC: a.SenderHardwareAddress(),
		TargetMAC: a.TargetHardwareAddress(),
	}
	// Only IPv4 protocol addresses are summarised.
	if a.ProtocolType() == packet.EtherTypeIPv4 && a.ProtocolAddressLength() == 4 {
		h.SenderIP, _ = netip.AddrFromSlice(a.SenderProtocolAddress())
		h.TargetIP, _ = netip.AddrFromSlice(a.TargetProtocolAddress())
	}
	return h
}
