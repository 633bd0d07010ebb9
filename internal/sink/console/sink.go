// Package console prints decoded packets as text or YAML.
package console

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/craft"
	"firestige.xyz/otus-codec/pkg/packet"
)

const Name = "console"

const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// Sink numbers frames from 1 in the order they are sent, failures included.
type Sink struct {
	w      io.Writer
	format string
	seq    int
}

func NewSink(w io.Writer, format string) (*Sink, error) {
	switch format {
	case "", FormatText:
		format = FormatText
	case FormatYAML:
	default:
		return nil, fmt.Errorf("console: unknown output format %q", format)
	}
	return &Sink{w: w, format: format}, nil
}

// Send prints one decoded packet.
func (s *Sink) Send(pkt *core.DecodedPacket) error {
	s.seq++
	if s.format == FormatYAML {
		doc, err := craft.Describe(pkt.Root)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(s.w, "--- # frame %d\n", s.seq); err != nil {
			return err
		}
		_, err = s.w.Write(doc)
		return err
	}

	names := make([]string, 0, 4)
	for _, k := range pkt.Layers() {
		names = append(names, k.String())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s len=%d layers=%s\n",
		s.seq, pkt.Timestamp.Format(time.RFC3339Nano), pkt.CaptureLen, strings.Join(names, ">"))
	for _, l := range packet.Chain(pkt.Root) {
		fmt.Fprintf(&b, "  %s\n", l)
	}
	if len(pkt.Labels) > 0 {
		keys := make([]string, 0, len(pkt.Labels))
		for k := range pkt.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			keys[i] = k + "=" + pkt.Labels[k]
		}
		fmt.Fprintf(&b, "  labels: %s\n", strings.Join(keys, " "))
	}
	if len(pkt.Payload) > 0 {
		fmt.Fprintf(&b, "  payload: %d octets %s\n", len(pkt.Payload), hex.EncodeToString(pkt.Payload))
	}
	_, err := io.WriteString(s.w, b.String())
	return err
}

// SendError prints a frame that failed to decode.
func (s *Sink) SendError(err error) error {
	s.seq++
	if s.format == FormatYAML {
		_, werr := fmt.Fprintf(s.w, "--- # frame %d\n# error: %v\n", s.seq, err)
		return werr
	}
	_, werr := fmt.Fprintf(s.w, "#%d error: %v\n", s.seq, err)
	return werr
}

func (s *Sink) Close() error {
	return nil
}
