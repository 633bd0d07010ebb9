package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/otus-codec/pkg/checksum"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum HEX",
	Short: "Compute the Internet checksum of hex data",
	Long: `Compute the 16-bit one's complement Internet checksum of the given octets.

A buffer that already holds a correct checksum field verifies to 0x0000.

Examples:
  otus-codec checksum 4500003c1c46400040060000ac100a63ac100a0c`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChecksum(args, cmd.OutOrStdout())
	},
}

func runChecksum(args []string, w io.Writer) error {
	var data []byte
	for _, a := range args {
		b, err := parseHex(a)
		if err != nil {
			return fmt.Errorf("invalid hex %q: %w", a, err)
		}
		data = append(data, b...)
	}
	_, err := fmt.Fprintf(w, "0x%04x valid=%t\n", checksum.Checksum(data), checksum.Verify(data))
	return err
}
