// Package decoder implements frame decoding on top of the packet codec.
package decoder

import (
	"errors"
	"fmt"
	"time"

	"firestige.xyz/otus-codec/internal/config"
	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/log"
	"firestige.xyz/otus-codec/internal/metrics"
	"firestige.xyz/otus-codec/pkg/packet"
)

// Decoder decodes raw packets into structured format.
type Decoder interface {
	Decode(raw core.RawPacket) (core.DecodedPacket, error)
}

// Config configures a StandardDecoder.
type Config struct {
	Link             packet.Kind // Outermost protocol, KindEthernet when zero
	EnableReassembly bool
	Reassembly       ReassemblyConfig
}

// NewConfig maps the decoder section of the global configuration.
func NewConfig(cfg config.DecoderConfig) (Config, error) {
	link, ok := packet.ParseKind(cfg.Link)
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", core.ErrUnsupportedLink, cfg.Link)
	}
	r := cfg.IPReassembly
	return Config{
		Link:             link,
		EnableReassembly: r.Enabled,
		Reassembly: ReassemblyConfig{
			MaxFragments:      r.MaxFragmentsPerFlow,
			MaxFlows:          r.MaxFragments,
			MaxReassembleSize: r.MaxReassembledSize,
			Timeout:           r.TimeoutDuration,
			MaxFragsPerIP:     r.RateLimitPerSource,
			RateLimitWindow:   r.RateLimitWindowDuration,
		},
	}, nil
}

// StandardDecoder decodes frames of one link type.
type StandardDecoder struct {
	link        packet.Kind
	reassembler *Reassembler // nil if reassembly disabled
	logger      log.Logger
}

var _ Decoder = (*StandardDecoder)(nil)

// NewStandardDecoder creates a decoder. A zero Config decodes Ethernet frames
// without reassembly.
func NewStandardDecoder(cfg Config) *StandardDecoder {
	if cfg.Link == packet.KindUnknown {
		cfg.Link = packet.KindEthernet
	}
	d := &StandardDecoder{
		link:   cfg.Link,
		logger: log.GetLogger().WithField("link", cfg.Link.String()),
	}
	if cfg.EnableReassembly {
		d.reassembler = NewReassembler(cfg.Reassembly)
	}
	return d
}

// Link returns the outermost protocol the decoder expects.
func (d *StandardDecoder) Link() packet.Kind { return d.link }

// Decode decodes one frame. Checksum mismatches do not fail the decode; they
// show up as DecodedPacket.Corrupted and in the labels. A fragment that does
// not yet complete a datagram decodes as-is with the ip.fragment label set.
func (d *StandardDecoder) Decode(raw core.RawPacket) (core.DecodedPacket, error) {
	start := time.Now()
	defer func() { metrics.DecodeLatencySeconds.Observe(time.Since(start).Seconds()) }()

	if len(raw.Data) == 0 {
		metrics.DecodeErrorsTotal.WithLabelValues(d.link.String(), packet.ClassInternal.String()).Inc()
		return core.DecodedPacket{}, fmt.Errorf("%w: empty frame", core.ErrPacketTooShort)
	}

	root, err := packet.DecodeFrame(d.link, raw.Data)
	if err != nil {
		return core.DecodedPacket{}, d.decodeFailed(err)
	}

	out := core.DecodedPacket{
		Timestamp:  raw.Timestamp,
		Root:       root,
		CaptureLen: raw.CaptureLen,
		OrigLen:    raw.OrigLen,
	}

	if d.reassembler != nil {
		if err := d.reassemble(&out, raw.Data, raw.Timestamp); err != nil {
			return core.DecodedPacket{}, d.decodeFailed(err)
		}
	}

	summarize(&out)
	out.Labels = buildLabels(&out)

	metrics.DecodedPacketsTotal.WithLabelValues(d.link.String()).Inc()
	for _, l := range packet.Chain(out.Root) {
		metrics.DecodedLayersTotal.WithLabelValues(l.Kind().String()).Inc()
		if l.Corrupted() {
			metrics.CorruptedPacketsTotal.WithLabelValues(l.Kind().String()).Inc()
		}
	}

	if out.Corrupted && d.logger.IsDebugEnabled() {
		d.logger.WithField("layers", out.Layers()).Debug("frame failed checksum verification")
	}
	return out, nil
}

// Pending returns the number of IPv4 datagrams awaiting more fragments.
func (d *StandardDecoder) Pending() int {
	if d.reassembler == nil {
		return 0
	}
	return d.reassembler.Pending()
}

// Close drops incomplete datagrams.
func (d *StandardDecoder) Close() error {
	if d.reassembler == nil {
		return nil
	}
	if n := d.reassembler.Flush(); n > 0 {
		d.logger.WithField("flows", n).Info("dropped incomplete fragmented datagrams")
	}
	return nil
}

func (d *StandardDecoder) decodeFailed(err error) error {
	kind, class := d.link, packet.ClassInternal
	var perr *packet.Error
	if errors.As(err, &perr) {
		kind, class = perr.Kind, perr.Class
	}
	metrics.DecodeErrorsTotal.WithLabelValues(kind.String(), class.String()).Inc()

	if errors.Is(err, packet.ErrShortBuffer) {
		err = fmt.Errorf("%w: %w", core.ErrPacketTooShort, err)
	}
	if d.logger.IsDebugEnabled() {
		d.logger.WithError(err).WithField("kind", kind.String()).Debug("frame decode failed")
	}
	return err
}
