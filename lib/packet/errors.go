package packet

import (
	"errors"
	"fmt"
)

var (
	ErrPacketEncoding = errors.New("packet encoding failed")
	ErrPacketDecoding = errors.New("packet decoding failed")

	// ErrPacketSize is an encoding error: the payload does not fit the length field limit.
	ErrPacketSize = fmt.Errorf("%w: payload too large", ErrPacketEncoding)

	// ErrCannotExtractPacket means more bytes are required before a packet
	// can be extracted. It is recoverable: push more data and try again.
	ErrCannotExtractPacket = errors.New("cannot extract packet")

	// ErrNeedMoreData is returned by DecodeHeader when the header itself is incomplete.
	ErrNeedMoreData = fmt.Errorf("%w: header incomplete", ErrCannotExtractPacket)
)
