package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/otus-codec/internal/config"
	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/core/decoder"
	"firestige.xyz/otus-codec/internal/filter"
	"firestige.xyz/otus-codec/internal/log"
	"firestige.xyz/otus-codec/internal/metrics"
	"firestige.xyz/otus-codec/internal/sink/console"
	"firestige.xyz/otus-codec/internal/source/file"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [HEX...]",
	Short: "Decode frames given as hex or read from a capture file",
	Long: `Decode frames given as hex arguments, one frame per argument, or read from a
pcap/pcapng file. Whitespace, ':' and '-' separators in hex are ignored.

Examples:
  otus-codec decode ffffffffffff001122334455080600010800060400010011223344 ...
  otus-codec decode --link ipv4 4500003c1c4640004006b1e6ac100a63ac100a0c
  otus-codec decode --pcap capture.pcapng --output yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := decodeOpts
		opts.Frames = args
		opts.LinkSet = cmd.Flags().Changed("link")
		opts.StopOnErrorSet = cmd.Flags().Changed("stop-on-error")
		return runDecode(ctx, currentConfig(), opts, cmd.OutOrStdout())
	},
}

type decodeOptions struct {
	Frames         []string
	PcapFile       string
	Link           string
	LinkSet        bool
	Output         string
	StopOnError    bool
	StopOnErrorSet bool
	MetricsListen  string
	Filter         string
}

var decodeOpts decodeOptions

func init() {
	decodeCmd.Flags().StringVarP(&decodeOpts.PcapFile, "pcap", "r", "", "pcap or pcapng file to read frames from")
	decodeCmd.Flags().StringVarP(&decodeOpts.Link, "link", "l", "", "outermost protocol (ethernet, ieee8021q, arp, ipv4, icmp, tcp, udp)")
	decodeCmd.Flags().StringVarP(&decodeOpts.Output, "output", "o", "text", "output format: text or yaml")
	decodeCmd.Flags().BoolVar(&decodeOpts.StopOnError, "stop-on-error", false, "stop at the first frame that fails to decode")
	decodeCmd.Flags().StringVar(&decodeOpts.Filter, "filter", "", "BPF program in tcpdump -ddd format, or @file holding one")
	decodeCmd.Flags().StringVar(&decodeOpts.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address while decoding")
}

// frameReader yields raw frames until io.EOF.
type frameReader interface {
	ReadPacket() (core.RawPacket, error)
}

type hexFrames struct {
	frames []string
	next   int
}

func (h *hexFrames) ReadPacket() (core.RawPacket, error) {
	if h.next >= len(h.frames) {
		return core.RawPacket{}, io.EOF
	}
	s := h.frames[h.next]
	h.next++
	data, err := parseHex(s)
	if err != nil {
		return core.RawPacket{}, fmt.Errorf("frame %d: %w", h.next, err)
	}
	return core.RawPacket{
		Data:       data,
		Timestamp:  time.Now(),
		CaptureLen: uint32(len(data)),
		OrigLen:    uint32(len(data)),
	}, nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':', '-':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}

func runDecode(ctx context.Context, cfg *config.GlobalConfig, opts decodeOptions, w io.Writer) error {
	sink, err := console.NewSink(w, opts.Output)
	if err != nil {
		return err
	}
	defer sink.Close()

	if opts.PcapFile == "" && len(opts.Frames) == 0 {
		return errors.New("nothing to decode: give hex frames or --pcap")
	}
	if opts.PcapFile != "" && len(opts.Frames) > 0 {
		return errors.New("hex frames and --pcap are mutually exclusive")
	}

	dcfg := cfg.Decoder
	if opts.LinkSet {
		dcfg.Link = strings.ToLower(opts.Link)
	}
	if opts.StopOnErrorSet {
		dcfg.StopOnError = opts.StopOnError
	}

	var reader frameReader
	if opts.PcapFile != "" {
		src, err := file.NewSource(opts.PcapFile)
		if err != nil {
			return err
		}
		if err := src.Start(ctx); err != nil {
			return err
		}
		defer src.Stop()

		if !opts.LinkSet {
			kind, err := src.LinkKind()
			if err != nil {
				return err
			}
			dcfg.Link = strings.ToLower(kind.String())
		}
		reader = src
	} else {
		reader = &hexFrames{frames: opts.Frames}
	}

	listen := cfg.Metrics.Listen
	if opts.MetricsListen != "" {
		listen = opts.MetricsListen
	}
	if cfg.Metrics.Enabled && listen != "" {
		srv := metrics.NewServer(listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	chain, err := frameFilter(opts.Filter, dcfg.Filter)
	if err != nil {
		return err
	}

	decCfg, err := decoder.NewConfig(dcfg)
	if err != nil {
		return err
	}
	dec := decoder.NewStandardDecoder(decCfg)
	defer dec.Close()

	logger := log.GetLogger().WithField("link", decCfg.Link.String())
	var decoded, failed int
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := reader.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if !chain.Match(raw) {
			continue
		}

		out, err := dec.Decode(raw)
		if err != nil {
			failed++
			if dcfg.StopOnError {
				return fmt.Errorf("frame %d: %w", n, err)
			}
			if err := sink.SendError(err); err != nil {
				return err
			}
			continue
		}
		decoded++
		if err := sink.Send(&out); err != nil {
			return err
		}
	}

	_, dropped := chain.Counts()
	logger.WithFields(map[string]interface{}{
		"filtered": dropped,
		"decoded":  decoded,
		"failed":   failed,
		"pending":  dec.Pending(),
	}).Info("decode finished")
	return nil
}

// frameFilter builds the filter chain from the flag, falling back to the
// configured program.
func frameFilter(flag, configured string) (*filter.Chain, error) {
	text := flag
	if text == "" {
		text = configured
	}
	if text == "" {
		return filter.NewChain(), nil
	}
	if strings.HasPrefix(text, "@") {
		b, err := os.ReadFile(text[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read filter: %w", err)
		}
		text = string(b)
	}
	f, err := filter.Compile(text)
	if err != nil {
		return nil, err
	}
	return filter.NewChain(f), nil
}
