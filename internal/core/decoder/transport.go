package decoder

import (
	"strings"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/pkg/packet"
)

func summarizeICMP(c *packet.ICMP) core.TransportHeader {
	return core.TransportHeader{
		Protocol: packet.IPProtocolICMP,
		ICMPType: c.Type(),
		ICMPCode: c.Code(),
	}
}

func summarizeTCP(t *packet.TCP) core.TransportHeader {
	return core.TransportHeader{
		Protocol: packet.IPProtocolTCP,
		SrcPort:  t.SourcePort(),
		DstPort:  t.DestinationPort(),
		TCPFlags: t.HeaderLenFlags(),
		SeqNum:   t.SequenceNumber(),
		AckNum:   t.AckNumber(),
	}
}

func summarizeUDP(u *packet.UDP) core.TransportHeader {
	return core.TransportHeader{
		Protocol: packet.IPProtocolUDP,
		SrcPort:  u.SourcePort(),
		DstPort:  u.DestinationPort(),
	}
}

var tcpFlagNames = []struct {
	bit  uint16
	name string
}{
	{packet.TCPFlagFIN, "FIN"},
	{packet.TCPFlagSYN, "SYN"},
	{packet.TCPFlagRST, "RST"},
	{packet.TCPFlagPSH, "PSH"},
	{packet.TCPFlagACK, "ACK"},
	{packet.TCPFlagURG, "URG"},
	{packet.TCPFlagECE, "ECE"},
	{packet.TCPFlagCWR, "CWR"},
	{packet.TCPFlagNS, "NS"},
}

// tcpFlagString renders flags as e.g. "SYN|ACK"; no flags renders as "".
func tcpFlagString(flags uint16) string {
	var names []string
	for _, f := range tcpFlagNames {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

// summarize walks the decoded chain and fills the per-layer summaries.
func summarize(out *core.DecodedPacket) {
	chain := packet.Chain(out.Root)
	for _, l := range chain {
		switch p := l.(type) {
		case *packet.Ethernet:
			summarizeEthernet(p, &out.Ethernet)
		case *packet.IEEE8021Q:
			summarizeVLAN(p, &out.Ethernet)
		case *packet.ARP:
			out.ARP = summarizeARP(p)
		case *packet.IPv4:
			out.IP = summarizeIPv4(p)
		case *packet.ICMP:
			out.Transport = summarizeICMP(p)
		case *packet.TCP:
			out.Transport = summarizeTCP(p)
		case *packet.UDP:
			out.Transport = summarizeUDP(p)
		}
		if l.Corrupted() {
			out.Corrupted = true
		}
	}
	if n := len(chain); n > 0 {
		out.Payload = chain[n-1].RawPayload()
	}
}
