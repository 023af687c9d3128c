package stcp

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

var (
	ErrSocketClosed      = errors.New("stcp socket closed")
	ErrSocketTimeout     = errors.New("stcp socket timeout")
	ErrNotConnected      = errors.New("stcp socket is not connected")
	ErrAlreadyConnected  = errors.New("stcp socket is already connected")
	ErrInvalidPollPeriod = errors.New("poll interval must be positive")
)

// closedError reports ErrSocketClosed, carrying the receive loop failure
// that closed the socket if there was one.
func closedError(fatal error) error {
	if fatal == nil {
		return ErrSocketClosed
	}
	return oops.Wrapf(fmt.Errorf("%w: %w", ErrSocketClosed, fatal), "receive loop failed")
}
