package vnet

import (
	"context"
	"sync"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// Message is one mailbox entry.
type Message struct {
	Source string
	Data   []byte
	Tag    any
}

// LocalNode is a named in-process mailbox.
type LocalNode struct {
	name string
	reg  *Registry

	mu      sync.Mutex
	mailbox []Message
	closed  bool

	// wake holds at most one token: a send or wake while nobody waits is
	// kept for the next receiver. done is closed once by Close.
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	recvMu sync.Mutex
}

func newLocalNode(reg *Registry, name string) *LocalNode {
	return &LocalNode{
		name: name,
		reg:  reg,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Name is the registered name of the node.
func (n *LocalNode) Name() string { return n.name }

// IsClosed reports whether Close has been called.
func (n *LocalNode) IsClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Send delivers data to the node registered as dest, with n as the source.
// data is copied.
func (n *LocalNode) Send(dest string, data []byte, tag any) error {
	if n.IsClosed() {
		return oops.Wrapf(ErrChannelClosed, "node %q", n.name)
	}
	dst, ok := n.reg.Lookup(dest)
	if !ok {
		return oops.Wrapf(ErrChannelSlotError, "node %q", dest)
	}
	msg := Message{Source: n.name, Data: append([]byte(nil), data...), Tag: tag}
	if !dst.deliver(msg) {
		return oops.Wrapf(ErrChannelClosed, "node %q", dest)
	}
	return nil
}

func (n *LocalNode) deliver(msg Message) bool {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return false
	}
	n.mailbox = append(n.mailbox, msg)
	n.mu.Unlock()
	n.signal()
	return true
}

func (n *LocalNode) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Recv blocks until a message is available and returns the oldest one. A
// non-empty source restricts it to messages from that node; others stay
// queued. Recv fails with ErrChannelClosed once the node is closed.
func (n *LocalNode) Recv(source string) (Message, error) {
	return n.RecvContext(context.Background(), source)
}

// RecvContext is Recv that also gives up when ctx is done.
func (n *LocalNode) RecvContext(ctx context.Context, source string) (Message, error) {
	n.recvMu.Lock()
	defer n.recvMu.Unlock()

	for {
		msg, ok, closed := n.take(source)
		if closed {
			return Message{}, oops.Wrapf(ErrChannelClosed, "node %q", n.name)
		}
		if ok {
			return msg, nil
		}
		select {
		case <-n.wake:
		case <-n.done:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (n *LocalNode) take(source string) (Message, bool, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return Message{}, false, true
	}
	for i, m := range n.mailbox {
		if source != "" && m.Source != source {
			continue
		}
		n.mailbox = append(n.mailbox[:i], n.mailbox[i+1:]...)
		return m, true, false
	}
	return Message{}, false, false
}

// Pending is the number of queued messages.
func (n *LocalNode) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.mailbox)
}

// Close drops the mailbox, wakes every receiver and frees the name. It is
// safe to call more than once.
func (n *LocalNode) Close() error {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		dropped := len(n.mailbox)
		n.mailbox = nil
		n.mu.Unlock()

		close(n.done)
		n.reg.release(n.name, n)
		log.WithFields(logger.Fields{
			"at":      "vnet.LocalNode.Close",
			"name":    n.name,
			"dropped": dropped,
		}).Debug("local_node_closed")
	})
	return nil
}
