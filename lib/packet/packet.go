package packet

import (
	"encoding/binary"
	"errors"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

var log = logger.GetGoI2PLogger()

const (
	// MaxPayloadSize bounds the payload of a single packet. The length field
	// could carry more; the limit keeps a corrupted header from making a
	// reader wait for gigabytes.
	MaxPayloadSize = 16 << 20

	tagSize          = 2
	payloadLenSize   = 4
	headerLenSize    = 2
	fixedHeaderSize  = tagSize + payloadLenSize + headerLenSize
	maxExtensionSize = 0xFFFF - fixedHeaderSize
)

// Tag identifies what produced a packet. The zero tag is the plain codec.
type Tag [2]byte

// ExtensionSizer maps a tag to the size of the extension block that follows it.
type ExtensionSizer interface {
	ExtensionSize(tag Tag) (int, error)
}

// SizerFunc adapts a function to ExtensionSizer.
type SizerFunc func(tag Tag) (int, error)

func (f SizerFunc) ExtensionSize(tag Tag) (int, error) { return f(tag) }

// plainSizer accepts only the zero tag, with no extension.
var plainSizer = SizerFunc(func(tag Tag) (int, error) {
	if tag != (Tag{}) {
		return 0, oops.Errorf("unknown packet tag %x", tag[:])
	}
	return 0, nil
})

// Header is the decoded fixed part of a packet.
type Header struct {
	Tag         Tag
	Extension   []byte
	PayloadSize int
	HeaderSize  int
}

// TotalSize is the number of bytes the whole packet occupies on the wire.
func (h Header) TotalSize() int {
	return h.HeaderSize + h.PayloadSize
}

// Packet is a fully decoded packet.
type Packet struct {
	Header
	Payload []byte
}

// Codec encodes and decodes packets. The zero value is not usable; see NewCodec.
type Codec struct {
	sizer ExtensionSizer
}

// NewCodec returns a codec that uses sizer to learn extension sizes. A nil
// sizer gives the plain codec.
func NewCodec(sizer ExtensionSizer) *Codec {
	if sizer == nil {
		sizer = plainSizer
	}
	return &Codec{sizer: sizer}
}

// HeaderSize returns the header size of packets carrying tag.
func (c *Codec) HeaderSize(tag Tag) (int, error) {
	n, err := c.sizer.ExtensionSize(tag)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxExtensionSize {
		return 0, oops.Errorf("extension size %d for tag %x out of range", n, tag[:])
	}
	return fixedHeaderSize + n, nil
}

// Encode builds a packet around payload. ext must be exactly as long as the
// sizer says for tag.
func (c *Codec) Encode(tag Tag, ext, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, oops.Wrapf(ErrPacketSize, "payload is %d bytes, max %d", len(payload), MaxPayloadSize)
	}
	headerSize, err := c.HeaderSize(tag)
	if err != nil {
		return nil, oops.Wrapf(ErrPacketEncoding, "%v", err)
	}
	if want := headerSize - fixedHeaderSize; len(ext) != want {
		return nil, oops.Wrapf(ErrPacketEncoding, "tag %x needs a %d byte extension, got %d", tag[:], want, len(ext))
	}

	out := make([]byte, headerSize+len(payload))
	copy(out[0:tagSize], tag[:])
	off := tagSize + copy(out[tagSize:], ext)
	binary.BigEndian.PutUint32(out[off:off+payloadLenSize], uint32(len(payload)))
	off += payloadLenSize
	binary.BigEndian.PutUint16(out[off:off+headerLenSize], uint16(headerSize))
	copy(out[headerSize:], payload)
	return out, nil
}

// DecodeHeader decodes the header at the start of data. Only the header
// bytes need to be present. ErrNeedMoreData means data is too short to tell.
func (c *Codec) DecodeHeader(data []byte) (Header, error) {
	if len(data) < tagSize {
		return Header{}, ErrNeedMoreData
	}
	var tag Tag
	copy(tag[:], data[:tagSize])
	headerSize, err := c.HeaderSize(tag)
	if err != nil {
		return Header{}, oops.Wrapf(ErrPacketDecoding, "%v", err)
	}
	if len(data) < headerSize {
		return Header{}, ErrNeedMoreData
	}

	extEnd := headerSize - payloadLenSize - headerLenSize
	payloadSize := binary.BigEndian.Uint32(data[extEnd : extEnd+payloadLenSize])
	declared := int(binary.BigEndian.Uint16(data[extEnd+payloadLenSize : headerSize]))
	if declared != headerSize {
		return Header{}, oops.Wrapf(ErrPacketDecoding, "header length field is %d, tag %x implies %d", declared, tag[:], headerSize)
	}
	if payloadSize > MaxPayloadSize {
		log.WithFields(logger.Fields{
			"at":          "packet.DecodeHeader",
			"tag":         tag[:],
			"payloadSize": payloadSize,
			"maxAllowed":  MaxPayloadSize,
		}).Warn("oversized_payload_length")
		return Header{}, oops.Wrapf(ErrPacketDecoding, "payload length %d exceeds max %d", payloadSize, MaxPayloadSize)
	}

	ext := make([]byte, extEnd-tagSize)
	copy(ext, data[tagSize:extEnd])
	return Header{
		Tag:         tag,
		Extension:   ext,
		PayloadSize: int(payloadSize),
		HeaderSize:  headerSize,
	}, nil
}

// DecodePacket decodes exactly one packet. data must hold the whole packet
// and nothing more; any other length means the stream is corrupted.
func (c *Codec) DecodePacket(data []byte) (Packet, error) {
	h, err := c.DecodeHeader(data)
	if err != nil {
		if errors.Is(err, ErrNeedMoreData) {
			return Packet{}, oops.Wrapf(ErrPacketDecoding, "%d bytes can not hold a header", len(data))
		}
		return Packet{}, err
	}
	if len(data) != h.TotalSize() {
		return Packet{}, oops.Wrapf(ErrPacketDecoding, "packet declares %d bytes, got %d", h.TotalSize(), len(data))
	}
	payload := make([]byte, h.PayloadSize)
	copy(payload, data[h.HeaderSize:])
	return Packet{Header: h, Payload: payload}, nil
}

// Decode decodes exactly one packet and returns its payload.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	p, err := c.DecodePacket(data)
	if err != nil {
		return nil, err
	}
	return p.Payload, nil
}
