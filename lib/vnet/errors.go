package vnet

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelSlotError means no node is registered under the requested name.
	ErrChannelSlotError = errors.New("no such local node")
	// ErrChannelFullSlots means the registry is at capacity.
	ErrChannelFullSlots = fmt.Errorf("%w: registry is full", ErrChannelSlotError)
	// ErrChannelObjectExists means the requested name is taken.
	ErrChannelObjectExists = errors.New("local node name in use")
	// ErrChannelClosed means the node has been closed.
	ErrChannelClosed = errors.New("local node closed")
	// ErrMissingEndpoint means a forward node was built without a node or socket.
	ErrMissingEndpoint = errors.New("forward node needs both a node and a socket")
)
