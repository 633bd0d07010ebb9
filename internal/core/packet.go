// Package core defines core data structures.
package core

import (
	"time"

	"firestige.xyz/otus-codec/pkg/packet"
)

// RawPacket is a frame as read from a capture source.
type RawPacket struct {
	Data           []byte    // Raw frame data
	Timestamp      time.Time // Capture timestamp
	CaptureLen     uint32    // Actual captured length
	OrigLen        uint32    // Original frame length
	InterfaceIndex int       // Capture interface index, 0 for files
}

// DecodedPacket is the result of decoding a RawPacket through the codec.
type DecodedPacket struct {
	Timestamp time.Time
	Root      packet.Packet // Outermost layer of the decoded chain
	Ethernet  EthernetHeader
	ARP       *ARPHeader // nil unless the frame carries ARP
	IP        IPHeader
	Transport TransportHeader
	Payload   []byte // Raw payload of the innermost layer
	Labels    Labels

	CaptureLen  uint32
	OrigLen     uint32
	Corrupted   bool // Some layer failed checksum verification
	Reassembled bool // Transport layer was rebuilt from IPv4 fragments
}

// Layers lists the decoded protocol kinds, outermost first.
func (d *DecodedPacket) Layers() []packet.Kind {
	chain := packet.Chain(d.Root)
	kinds := make([]packet.Kind, 0, len(chain))
	for _, l := range chain {
		kinds = append(kinds, l.Kind())
	}
	return kinds
}
