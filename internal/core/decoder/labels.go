package decoder

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/pkg/packet"
)

func buildLabels(out *core.DecodedPacket) core.Labels {
	labels := make(core.Labels)

	kinds := out.Layers()
	has := func(k packet.Kind) bool {
		for _, x := range kinds {
			if x == k {
				return true
			}
		}
		return false
	}

	if has(packet.KindEthernet) {
		labels[core.LabelEthSrc] = net.HardwareAddr(out.Ethernet.SrcMAC[:]).String()
		labels[core.LabelEthDst] = net.HardwareAddr(out.Ethernet.DstMAC[:]).String()
		labels[core.LabelEthType] = fmt.Sprintf("0x%04x", out.Ethernet.EtherType)
	}
	if len(out.Ethernet.VLANs) > 0 {
		ids := make([]string, len(out.Ethernet.VLANs))
		for i, id := range out.Ethernet.VLANs {
			ids[i] = strconv.Itoa(int(id))
		}
		labels[core.LabelVLANIDs] = strings.Join(ids, ",")
	}

	if a := out.ARP; a != nil {
		labels[core.LabelARPOp] = arpOpName(a.Operation)
		if a.SenderIP.IsValid() {
			labels[core.LabelARPSenderIP] = a.SenderIP.String()
		}
		if a.TargetIP.IsValid() {
			labels[core.LabelARPTargetIP] = a.TargetIP.String()
		}
	}

	if has(packet.KindIPv4) {
		labels[core.LabelIPSrc] = out.IP.SrcIP.String()
		labels[core.LabelIPDst] = out.IP.DstIP.String()
		labels[core.LabelIPProto] = strconv.Itoa(int(out.IP.Protocol))
		labels[core.LabelIPTTL] = strconv.Itoa(int(out.IP.TTL))
		if out.IP.MoreFragments || out.IP.FragmentOffset != 0 {
			labels[core.LabelIPFragment] = "true"
		}
		if out.Reassembled {
			labels[core.LabelReassembled] = "true"
		}
	}

	for _, l := range packet.Chain(out.Root) {
		switch l.Kind() {
		case packet.KindIPv4:
			if l.Corrupted() {
				labels[core.LabelIPCorrupted] = "true"
			}
		case packet.KindICMP:
			labels[core.LabelICMPType] = strconv.Itoa(int(out.Transport.ICMPType))
			labels[core.LabelICMPCode] = strconv.Itoa(int(out.Transport.ICMPCode))
			if l.Corrupted() {
				labels[core.LabelICMPCorrupted] = "true"
			}
		case packet.KindTCP:
			labels[core.LabelL4SrcPort] = strconv.Itoa(int(out.Transport.SrcPort))
			labels[core.LabelL4DstPort] = strconv.Itoa(int(out.Transport.DstPort))
			labels[core.LabelTCPFlags] = tcpFlagString(out.Transport.TCPFlags)
		case packet.KindUDP:
			labels[core.LabelL4SrcPort] = strconv.Itoa(int(out.Transport.SrcPort))
			labels[core.LabelL4DstPort] = strconv.Itoa(int(out.Transport.DstPort))
		}
	}
	return labels
}

func arpOpName(op uint16) string {
	switch op {
	case packet.ARPOpRequest:
		return "request"
	case packet.ARPOpReply:
		return "reply"
	default:
		return strconv.Itoa(int(op))
	}
}
