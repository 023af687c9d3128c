package vnet

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/go-stcp/stcp/lib/metrics"
	"github.com/go-stcp/stcp/lib/stcp"
)

// Conn is the socket side of a forwarder. *stcp.Socket implements it.
type Conn interface {
	SendAll(data []byte) (int, error)
	RecvContext(ctx context.Context) ([]byte, error)
	Close() error
}

var _ Conn = (*stcp.Socket)(nil)

// ForwardNode relays between a bound local node and a socket. Messages sent
// to the forwarder's own node go out on the socket; payloads read from the
// socket reach the bound node with the forwarder as source.
type ForwardNode struct {
	node    *LocalNode
	bound   *LocalNode
	conn    Conn
	cascade bool
	metrics *metrics.Metrics
	logger  *logrus.Entry
}

type ForwardOption func(*ForwardNode)

// WithForwardMetrics counts relayed messages on m.
func WithForwardMetrics(m *metrics.Metrics) ForwardOption {
	return func(f *ForwardNode) { f.metrics = m }
}

// NewForwardNode registers a forwarder named name in reg, bridging bound and
// conn. With cascadeClose, the end of either relay direction closes bound
// and conn as well.
func NewForwardNode(reg *Registry, bound *LocalNode, conn Conn, name string, cascadeClose bool, opts ...ForwardOption) (*ForwardNode, error) {
	if bound == nil || conn == nil {
		return nil, ErrMissingEndpoint
	}
	node, err := reg.NewLocalNode(name)
	if err != nil {
		return nil, err
	}
	f := &ForwardNode{
		node:    node,
		bound:   bound,
		conn:    conn,
		cascade: cascadeClose,
	}
	for _, o := range opts {
		o(f)
	}
	f.logger = logrus.WithFields(logrus.Fields{
		"component": "vnet",
		"forwarder": node.Name(),
		"bound":     bound.Name(),
	})
	return f, nil
}

// Name is the forwarder's registered name; send to it to reach the socket.
func (f *ForwardNode) Name() string { return f.node.Name() }

// Start runs both relay directions and blocks until one of them ends. The
// forwarder's own node is always closed on return. Errors that are not a
// plain close of either side are returned, together with close errors when
// cascading.
func (f *ForwardNode) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan error, 2)
	go func() { results <- f.nodeToSocket(ctx) }()
	go func() { results <- f.socketToNode(ctx) }()

	first := <-results
	cancel()
	f.node.Close()
	second := <-results
	err := multierr.Combine(first, second)

	if f.cascade {
		err = multierr.Append(err, f.bound.Close())
		err = multierr.Append(err, f.conn.Close())
	} else {
		f.bound.signal()
	}
	entry := f.logger.WithField("cascade", f.cascade)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("Forwarder stopped")
	return err
}

func (f *ForwardNode) nodeToSocket(ctx context.Context) error {
	defer f.logger.Debug("Waiting from node ended")
	for {
		msg, err := f.node.RecvContext(ctx, "")
		if err != nil {
			if errors.Is(err, ErrChannelClosed) || ctx.Err() != nil {
				return nil
			}
			return oops.Wrapf(err, "reading forwarder mailbox")
		}
		if len(msg.Data) == 0 {
			continue
		}
		if _, err := f.conn.SendAll(msg.Data); err != nil {
			if errors.Is(err, stcp.ErrSocketClosed) {
				return nil
			}
			return oops.Wrapf(err, "forwarding %d bytes to socket", len(msg.Data))
		}
		f.metrics.Forward(metrics.DirectionToSocket)
	}
}

func (f *ForwardNode) socketToNode(ctx context.Context) error {
	defer f.logger.Debug("Waiting from remote ended")
	for {
		data, err := f.conn.RecvContext(ctx)
		switch {
		case err == nil:
		case errors.Is(err, stcp.ErrSocketTimeout):
			continue
		case errors.Is(err, stcp.ErrSocketClosed), ctx.Err() != nil:
			return nil
		default:
			return oops.Wrapf(err, "reading socket")
		}
		if len(data) == 0 {
			continue
		}
		if err := f.node.Send(f.bound.Name(), data, nil); err != nil {
			if errors.Is(err, ErrChannelClosed) || errors.Is(err, ErrChannelSlotError) {
				f.logger.WithError(err).Debug("Channel closed")
				return nil
			}
			return err
		}
		f.metrics.Forward(metrics.DirectionToNode)
	}
}
