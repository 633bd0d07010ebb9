// Package file reads captured frames from pcap and pcapng files.
package file

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/metrics"
	"firestige.xyz/otus-codec/pkg/packet"
)

const Name = "file"

// pcapngMagic is the block type of a pcapng Section Header Block.
const pcapngMagic = 0x0A0D0D0A

// Raw IPv4 link types: LINKTYPE_RAW and LINKTYPE_IPV4.
const (
	linkTypeRaw  layers.LinkType = 101
	linkTypeIPv4 layers.LinkType = 228
)

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Source reads frames from a capture file.
type Source struct {
	path   string
	file   *os.File
	reader packetReader
}

func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required")
	}
	return &Source{path: path}, nil
}

// Start opens the file and detects pcap or pcapng from its magic number.
func (s *Source) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", s.path, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to read capture file header %s: %w", s.path, err)
	}

	var r packetReader
	if binary.BigEndian.Uint32(magic) == pcapngMagic {
		r, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		r, err = pcapgo.NewReader(br)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to parse capture file %s: %w", s.path, err)
	}

	s.file = f
	s.reader = r
	return nil
}

// ReadPacket returns the next frame, or io.EOF after the last one.
func (s *Source) ReadPacket() (core.RawPacket, error) {
	if s.reader == nil {
		return core.RawPacket{}, core.ErrSourceNotStarted
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("failed to read packet: %w", err)
	}
	metrics.SourcePacketsTotal.WithLabelValues(Name).Inc()

	return core.RawPacket{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

func (s *Source) LinkType() layers.LinkType {
	if s.reader == nil {
		return layers.LinkTypeEthernet // default
	}
	return s.reader.LinkType()
}

// LinkKind maps the file's link type to the outermost packet kind.
func (s *Source) LinkKind() (packet.Kind, error) {
	switch lt := s.LinkType(); lt {
	case layers.LinkTypeEthernet:
		return packet.KindEthernet, nil
	case linkTypeRaw, linkTypeIPv4:
		return packet.KindIPv4, nil
	default:
		return packet.KindUnknown, fmt.Errorf("%w: %s", core.ErrUnsupportedLink, lt)
	}
}

func (s *Source) Stop() error {
	s.reader = nil
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
