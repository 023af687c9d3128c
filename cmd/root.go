// Package cmd implements the stcp command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/go-i2p/logger"
	"github.com/spf13/cobra"

	"github.com/go-stcp/stcp/lib/config"
	"github.com/go-stcp/stcp/lib/util/signals"
)

var log = logger.GetGoI2PLogger()

var rootCmd = &cobra.Command{
	Use:   "stcp",
	Short: "Secure length-framed TCP transport",
	Long: `stcp sends encrypted, length-framed packets over TCP.

"stcp serve" runs an echo server, optionally through a local node overlay;
"stcp connect" sends lines from stdin and prints the replies. Both peers
need the same cipher name and key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.InitConfig()
		if err := bindFlags(); err != nil {
			return err
		}
		return config.Validate(config.CurrentConfig())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// interruptContext returns a context that is cancelled by SIGINT or SIGTERM.
// The returned cancel also removes the interrupt handler.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	id := signals.RegisterInterruptHandler(func() { cancel() })
	return ctx, func() {
		signals.Deregister(id)
		cancel()
	}
}

// RootCmd returns the root command for tests.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&config.CfgFile, "config", "", "config file (default is ~/.stcp/config.yaml)")
	flags.String("cipher", "", "cipher name, e.g. AES-CTR or ChaCha20")
	flags.String("key", "", "shared key as hex")
	flags.Bool("authenticated", true, "append a plaintext digest to every packet")
	flags.Duration("recv-timeout", 0, "give up on a reply after this long (0 waits)")

	bind(flags.Lookup("cipher"), config.KeyCipherName)
	bind(flags.Lookup("key"), config.KeyCipherKeyHex)
	bind(flags.Lookup("authenticated"), config.KeyAuthenticated)
	bind(flags.Lookup("recv-timeout"), config.KeyRecvTimeout)
}
