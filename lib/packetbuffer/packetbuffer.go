// Package packetbuffer reassembles packets from a stream of arbitrarily
// sized byte chunks.
package packetbuffer

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-stcp/stcp/lib/packet"
)

var log = logger.GetGoI2PLogger()

// State is the reassembly state of a Buffer.
type State int32

const (
	// Idle means no partial packet is held.
	Idle State = iota
	// HeaderPending means bytes are held but the header is not decodable yet.
	HeaderPending
	// PayloadPending means the packet size is known and more bytes are needed.
	PayloadPending
	// Ready means a whole packet is held and is being decoded.
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case HeaderPending:
		return "header_pending"
	case PayloadPending:
		return "payload_pending"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Decoder is what a Buffer needs to split a stream into packets.
// packet.Codec and securepacket.Decoder both satisfy it.
type Decoder interface {
	DecodeHeader(data []byte) (packet.Header, error)
	Decode(data []byte) ([]byte, error)
}

// Buffer queues raw chunks from any number of producers and hands decoded
// payloads to a single consumer.
type Buffer struct {
	decoder Decoder

	mu    sync.Mutex
	queue [][]byte

	// Owned by the consumer calling Pop.
	acc      []byte
	expected int
	state    atomic.Int32
}

// New returns a buffer that splits packets with decoder. A nil decoder gives
// a passthrough buffer: Pop returns whatever is queued, concatenated.
func New(decoder Decoder) *Buffer {
	return &Buffer{decoder: decoder}
}

// Push appends chunk to the queue. The buffer keeps a copy.
func (b *Buffer) Push(chunk []byte) {
	c := append([]byte(nil), chunk...)
	b.mu.Lock()
	b.queue = append(b.queue, c)
	b.mu.Unlock()
}

// PushFront queues chunk ahead of everything already queued.
func (b *Buffer) PushFront(chunk []byte) {
	c := append([]byte(nil), chunk...)
	b.mu.Lock()
	b.queue = append([][]byte{c}, b.queue...)
	b.mu.Unlock()
}

// Len is the number of queued chunks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// State returns the current reassembly state.
func (b *Buffer) State() State {
	return State(b.state.Load())
}

func (b *Buffer) setState(s State) {
	b.state.Store(int32(s))
}

func (b *Buffer) dequeue() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil, false
	}
	c := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	return c, true
}

func (b *Buffer) drain() []byte {
	b.mu.Lock()
	queued := b.queue
	b.queue = nil
	b.mu.Unlock()

	var out []byte
	for _, c := range queued {
		out = append(out, c...)
	}
	return out
}

func (b *Buffer) reset() {
	b.acc = nil
	b.expected = 0
	b.setState(Idle)
}

// Pop consumes the next queued chunk and returns a payload when a packet is
// complete.
//
// It returns nil, nil when nothing is queued or the header is still
// incomplete, and packet.ErrCannotExtractPacket when the packet size is
// known but bytes are still missing; both mean "push more and retry".
// Bytes past the end of a packet are queued again at the front. An
// undecodable header drops the accumulated bytes; a packet that fails to
// decode is dropped on its own. Both errors are returned.
//
// Pop must not be called concurrently with itself.
func (b *Buffer) Pop() ([]byte, error) {
	if b.decoder == nil {
		return b.drain(), nil
	}

	chunk, ok := b.dequeue()
	if !ok {
		if b.expected > 0 {
			return nil, packet.ErrCannotExtractPacket
		}
		return nil, nil
	}
	b.acc = append(b.acc, chunk...)
	if len(b.acc) == 0 {
		return nil, nil
	}

	if b.expected == 0 {
		h, err := b.decoder.DecodeHeader(b.acc)
		if errors.Is(err, packet.ErrNeedMoreData) {
			b.setState(HeaderPending)
			return nil, nil
		}
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"at":      "packetbuffer.Pop",
				"dropped": len(b.acc),
			}).Debug("undecodable_header")
			b.reset()
			return nil, err
		}
		b.expected = h.TotalSize()
		b.setState(PayloadPending)
	}

	if len(b.acc) < b.expected {
		return nil, packet.ErrCannotExtractPacket
	}

	b.setState(Ready)
	data := b.acc
	if len(data) > b.expected {
		b.PushFront(data[b.expected:])
		data = data[:b.expected]
	}
	b.reset()

	payload, err := b.decoder.Decode(data)
	if err != nil {
		return nil, oops.Wrapf(err, "dropping %d byte packet", len(data))
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, nil
}
