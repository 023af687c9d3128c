package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/go-stcp/stcp/lib/config"
	"github.com/go-stcp/stcp/lib/stcp"
	"github.com/go-stcp/stcp/lib/util/signals"
)

var connectCmd = &cobra.Command{
	Use:   "connect [address]",
	Short: "Send stdin lines to a server and print the replies",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.CurrentConfig()
		addr := cfg.Transport.ListenAddress
		if len(args) == 1 {
			addr = args[0]
		}

		ctx, cancel := interruptContext(cmd.Context())
		defer cancel()
		go signals.Handle(ctx)

		return connect(ctx, cfg, addr, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

// connect sends each line of in as one packet and writes each reply to out.
func connect(ctx context.Context, cfg config.ConfigDefaults, addr string, in io.Reader, out io.Writer) error {
	c, err := cfg.Cipher.NewCipher()
	if err != nil {
		return err
	}
	s, err := stcp.Dial(ctx, addr, c, cfg.Transport.SocketOptions(nil)...)
	if err != nil {
		return err
	}
	defer s.Close()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if _, err := s.SendAll(scanner.Bytes()); err != nil {
			return err
		}
		reply, err := recvReply(ctx, s)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", reply)
	}
	return scanner.Err()
}

// recvReply skips dropped packets and returns the next payload.
func recvReply(ctx context.Context, s *stcp.Socket) ([]byte, error) {
	for {
		reply, err := s.RecvContext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, stcp.ErrSocketClosed
			}
			return nil, err
		}
		if reply != nil {
			return reply, nil
		}
	}
}
