package decoder

import (
	"fmt"
	"time"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/pkg/packet"
)

func summarizeIPv4(ip *packet.IPv4) core.IPHeader {
	return core.IPHeader{
		Version:        ip.Version(),
		SrcIP:          ip.SourceAddress(),
		DstIP:          ip.DestinationAddress(),
		Protocol:       ip.Protocol(),
		TTL:            ip.TTL(),
		TotalLen:       ip.TotalLength(),
		ID:             ip.Identification(),
		FragmentOffset: ip.FragmentOffset(),
		MoreFragments:  ip.Flags()&packet.IPv4FlagMoreFragments != 0,
	}
}

// isIPFragment reports whether ip is part of a fragmented datagram.
func isIPFragment(ip *packet.IPv4) bool {
	return ip.Flags()&packet.IPv4FlagMoreFragments != 0 || ip.FragmentOffset() != 0
}

// ipPayload returns the octets following the IPv4 header that starts at
// octet off of frame, clamped to TotalLength. Link-layer padding is dropped.
func ipPayload(frame []byte, off int, ip *packet.IPv4) []byte {
	hdr := ip.HeaderBits() / 8
	start := off + hdr
	if start > len(frame) {
		return nil
	}
	end := len(frame)
	if total := int(ip.TotalLength()); total >= hdr && off+total < end {
		end = off + total
	}
	return frame[start:end]
}

// reassemble feeds the first IPv4 layer of out to the reassembler. When a
// fragment completes its datagram, that IPv4 layer is rewritten as the
// unfragmented datagram and its payload decoded again.
func (d *StandardDecoder) reassemble(out *core.DecodedPacket, frame []byte, ts time.Time) error {
	bits := 0
	for _, l := range packet.Chain(out.Root) {
		ip, ok := l.(*packet.IPv4)
		if !ok {
			bits += l.HeaderBits()
			continue
		}
		if !isIPFragment(ip) {
			return nil
		}

		data, complete, err := d.reassembler.Process(ip, ipPayload(frame, bits/8, ip), ts)
		if err != nil {
			d.logger.WithError(err).WithFields(map[string]interface{}{
				"src": ip.SourceAddress().String(),
				"id":  ip.Identification(),
			}).Warn("fragment rejected")
			return nil
		}
		if !complete {
			return nil
		}
		return rebuildDatagram(ip, data, out)
	}
	return nil
}

func rebuildDatagram(ip *packet.IPv4, data []byte, out *core.DecodedPacket) error {
	total := ip.HeaderBits()/8 + len(data)
	if total > ipv4MaxSize {
		return fmt.Errorf("%w: reassembled datagram is %d octets", core.ErrReassemblyLimit, total)
	}
	ip.SetFlags(ip.Flags() &^ packet.IPv4FlagMoreFragments).
		SetFragmentOffset(0).
		SetTotalLength(uint16(total))

	kind, ok := packet.PayloadKind(packet.KindIPv4, uint32(ip.Protocol()))
	if !ok {
		ip.SetRawPayload(data)
		out.Reassembled = true
		return nil
	}
	inner, err := packet.DecodeFrame(kind, data)
	if err != nil {
		return fmt.Errorf("reassembled datagram: %w", err)
	}
	if err := packet.SetPayload(ip, inner); err != nil {
		return err
	}
	out.Reassembled = true
	return nil
}
