package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/otus-codec/pkg/packet"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a packet description",
	Long: `Validate a YAML packet description without printing the packet.

The description is parsed, built and encoded; any field that does not fit its
bit width or any layer that cannot carry the next one is reported.

Examples:
  otus-codec validate -f invite.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(validateFile, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var validateFile string

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "",
		"packet description file to validate, - for stdin (required)")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(path string, stdin io.Reader, w io.Writer) error {
	d, err := readDescription(path, stdin)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	wire, err := d.Encode()
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	names := make([]string, 0, 4)
	for _, k := range d.Kinds() {
		names = append(names, k.String())
	}
	p, err := packet.DecodeFrame(d.Kinds()[0], wire)
	if err != nil {
		return fmt.Errorf("INVALID: encoded frame does not decode: %w", err)
	}
	_, err = fmt.Fprintf(w, "VALID: %s, %d octets, %d layer(s) decoded\n",
		strings.Join(names, ">"), len(wire), len(packet.Chain(p)))
	return err
}
