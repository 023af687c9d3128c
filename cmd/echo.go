package cmd

import (
	"context"
	"errors"

	"github.com/go-i2p/logger"

	"github.com/go-stcp/stcp/lib/metrics"
	"github.com/go-stcp/stcp/lib/stcp"
	"github.com/go-stcp/stcp/lib/vnet"
)

// echoSocket sends every received payload back until the socket closes or
// ctx is done.
func echoSocket(ctx context.Context, s *stcp.Socket) error {
	for {
		data, err := s.RecvContext(ctx)
		switch {
		case err == nil:
		case errors.Is(err, stcp.ErrSocketTimeout):
			continue
		case errors.Is(err, stcp.ErrSocketClosed), errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}
		if data == nil {
			continue
		}
		if _, err := s.SendAll(data); err != nil {
			if errors.Is(err, stcp.ErrSocketClosed) {
				return nil
			}
			return err
		}
	}
}

// echoNode answers every message with the same data, addressed back to the
// sender. It returns when the node closes or ctx is done.
func echoNode(ctx context.Context, n *vnet.LocalNode) error {
	for {
		msg, err := n.RecvContext(ctx, "")
		switch {
		case err == nil:
		case errors.Is(err, vnet.ErrChannelClosed), errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}
		if err := n.Send(msg.Source, msg.Data, msg.Tag); err != nil {
			// The forwarder behind msg.Source went away with its connection.
			log.WithError(err).WithFields(logger.Fields{
				"at":     "cmd.echoNode",
				"source": msg.Source,
			}).Debug("reply_undeliverable")
		}
	}
}

// serveOverlay relays s into the echo node through a forwarder and waits
// for the forwarder to stop. The forwarder closes s but leaves the echo
// node open for other connections.
func serveOverlay(reg *vnet.Registry, echo *vnet.LocalNode, s *stcp.Socket, m *metrics.Metrics) error {
	f, err := vnet.NewForwardNode(reg, echo, s, "", false, vnet.WithForwardMetrics(m))
	if err != nil {
		s.Close()
		return err
	}
	defer s.Close()
	return f.Start()
}
