// Package pcap writes frames to a classic pcap file.
package pcap

import (
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/pkg/packet"
)

const Name = "pcap"

const snapLen = 65536

type Sink struct {
	w      *pcapgo.Writer
	closer io.Closer
	count  int
}

// LinkType maps the outermost protocol of written frames to a pcap link type.
func LinkType(k packet.Kind) (layers.LinkType, error) {
	switch k {
	case packet.KindEthernet:
		return layers.LinkTypeEthernet, nil
	case packet.KindIPv4:
		return layers.LinkTypeRaw, nil
	}
	return 0, fmt.Errorf("%w: no pcap link type for %s", core.ErrUnsupportedLink, k)
}

// NewSink writes the file header to w. If w is an io.Closer, Close closes it.
func NewSink(w io.Writer, link packet.Kind) (*Sink, error) {
	lt, err := LinkType(link)
	if err != nil {
		return nil, err
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, lt); err != nil {
		return nil, fmt.Errorf("pcap: write header: %w", err)
	}
	s := &Sink{w: pw}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s, nil
}

// Send writes one frame. A zero timestamp is replaced by the current time.
func (s *Sink) Send(raw core.RawPacket) error {
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	origLen := int(raw.OrigLen)
	if origLen < len(raw.Data) {
		origLen = len(raw.Data)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:      ts,
		CaptureLength:  len(raw.Data),
		Length:         origLen,
		InterfaceIndex: raw.InterfaceIndex,
	}
	if err := s.w.WritePacket(ci, raw.Data); err != nil {
		return fmt.Errorf("pcap: write frame: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of frames written.
func (s *Sink) Count() int { return s.count }

func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
