package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/otus-codec/internal/core"
	"firestige.xyz/otus-codec/internal/craft"
	"firestige.xyz/otus-codec/internal/metrics"
	"firestige.xyz/otus-codec/internal/sink/pcap"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a packet described in YAML",
	Long: `Encode a packet described in YAML and print its wire bytes as hex.

Lengths, EtherTypes and the IPv4 protocol left out of the description are
derived from the layers that follow. The IPv4 and ICMP checksums are computed.

Examples:
  otus-codec encode -f invite.yaml
  otus-codec encode -f invite.yaml --pcap-out invite.pcap
  cat invite.yaml | otus-codec encode -f -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(encodeFile, encodePcapOut, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var (
	encodeFile    string
	encodePcapOut string
)

func init() {
	encodeCmd.Flags().StringVarP(&encodeFile, "file", "f", "", "packet description file, - for stdin (required)")
	encodeCmd.Flags().StringVarP(&encodePcapOut, "pcap-out", "w", "", "also write the frame to this pcap file")
	encodeCmd.MarkFlagRequired("file")
}

func readDescription(path string, stdin io.Reader) (*craft.Description, error) {
	if path == "-" {
		return craft.Parse(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	defer f.Close()
	return craft.Parse(f)
}

func runEncode(path, pcapOut string, stdin io.Reader, w io.Writer) error {
	d, err := readDescription(path, stdin)
	if err != nil {
		return err
	}
	wire, err := d.Encode()
	if err != nil {
		return err
	}
	metrics.EncodedPacketsTotal.WithLabelValues(d.Kinds()[0].String()).Inc()

	if pcapOut != "" {
		if err := writePcap(pcapOut, d, wire); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, hex.EncodeToString(wire))
	return err
}

func writePcap(path string, d *craft.Description, wire []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	s, err := pcap.NewSink(f, d.Kinds()[0])
	if err != nil {
		f.Close()
		return err
	}
	if err := s.Send(core.RawPacket{Data: wire}); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}
