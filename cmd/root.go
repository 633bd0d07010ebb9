// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/otus-codec/internal/config"
	"firestige.xyz/otus-codec/internal/log"
)

var (
	// Global flags
	configFile string

	globalConfig *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "otus-codec",
	Short: "Otus codec - bit-exact L2-L4 packet decoder and encoder",
	Long: `otus-codec decodes and encodes Ethernet, 802.1Q, ARP, IPv4, ICMP, TCP and UDP
packets with bit-exact fidelity.

Frames come from hex arguments or pcap/pcapng files; packets to encode are
described in YAML. IPv4 fragments seen while decoding are reassembled.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/otus-codec/config.yml",
		"config file path, defaults apply when it does not exist")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(checksumCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	globalConfig = cfg
	return nil
}

// currentConfig returns the loaded configuration, or the defaults when a
// command runs without the root pre-run.
func currentConfig() *config.GlobalConfig {
	if globalConfig == nil {
		return config.Default()
	}
	return globalConfig
}
