package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTag = Tag{0x01, 0x02}

// testSizer knows the zero tag (no extension) and testTag (4 byte extension).
var testSizer = SizerFunc(func(tag Tag) (int, error) {
	switch tag {
	case Tag{}:
		return 0, nil
	case testTag:
		return 4, nil
	}
	return 0, assert.AnError
})

func TestPlainRoundTrip(t *testing.T) {
	c := NewCodec(nil)
	for _, payload := range [][]byte{{}, []byte("hello"), bytes.Repeat([]byte{0xAB}, 70000)} {
		encoded, err := c.Encode(Tag{}, nil, payload)
		require.NoError(t, err)
		assert.Len(t, encoded, fixedHeaderSize+len(payload))

		h, err := c.DecodeHeader(encoded[:fixedHeaderSize])
		require.NoError(t, err)
		assert.Equal(t, fixedHeaderSize, h.HeaderSize)
		assert.Equal(t, len(payload), h.PayloadSize)
		assert.Equal(t, len(encoded), h.TotalSize())

		decoded, err := c.Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	}
}

func TestWireLayout(t *testing.T) {
	c := NewCodec(testSizer)
	encoded, err := c.Encode(testTag, []byte{9, 8, 7, 6}, []byte("xy"))
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x01, 0x02, // tag
		9, 8, 7, 6, // extension
		0, 0, 0, 2, // payload length
		0, 12, // header length
		'x', 'y',
	}, encoded)

	p, err := c.DecodePacket(encoded)
	require.NoError(t, err)
	assert.Equal(t, testTag, p.Tag)
	assert.Equal(t, []byte{9, 8, 7, 6}, p.Extension)
	assert.Equal(t, []byte("xy"), p.Payload)
}

func TestEncodeErrors(t *testing.T) {
	c := NewCodec(testSizer)

	_, err := c.Encode(testTag, []byte{1}, nil)
	assert.ErrorIs(t, err, ErrPacketEncoding)

	_, err = c.Encode(Tag{0xFF, 0xFF}, nil, nil)
	assert.ErrorIs(t, err, ErrPacketEncoding)

	_, err = c.Encode(Tag{}, nil, make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPacketSize)
	assert.ErrorIs(t, err, ErrPacketEncoding)
}

func TestDecodeHeaderNeedsOnlyHeader(t *testing.T) {
	c := NewCodec(testSizer)
	encoded, err := c.Encode(testTag, []byte{1, 2, 3, 4}, []byte("payload"))
	require.NoError(t, err)

	for n := 0; n < 12; n++ {
		_, err := c.DecodeHeader(encoded[:n])
		assert.ErrorIs(t, err, ErrNeedMoreData, "prefix %d", n)
		assert.ErrorIs(t, err, ErrCannotExtractPacket, "prefix %d", n)
	}
	h, err := c.DecodeHeader(encoded[:12])
	require.NoError(t, err)
	assert.Equal(t, 7, h.PayloadSize)
}

func TestDecodeHeaderCorruption(t *testing.T) {
	c := NewCodec(testSizer)
	encoded, err := c.Encode(testTag, []byte{1, 2, 3, 4}, []byte("payload"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(b []byte)
	}{
		{"unknown tag", func(b []byte) { b[0] = 0x7F }},
		{"header length", func(b []byte) { b[11] = 13 }},
		{"oversize payload", func(b []byte) { b[6] = 0xFF }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), encoded...)
			tt.mutate(b)
			_, err := c.DecodeHeader(b)
			assert.ErrorIs(t, err, ErrPacketDecoding)
			assert.NotErrorIs(t, err, ErrCannotExtractPacket)
		})
	}
}

func TestDecodeRequiresExactSize(t *testing.T) {
	c := NewCodec(nil)
	encoded, err := c.Encode(Tag{}, nil, []byte("hello"))
	require.NoError(t, err)

	_, err = c.Decode(encoded[:len(encoded)-1])
	assert.ErrorIs(t, err, ErrPacketDecoding)

	_, err = c.Decode(append(encoded, 0))
	assert.ErrorIs(t, err, ErrPacketDecoding)

	_, err = c.Decode(encoded[:3])
	assert.ErrorIs(t, err, ErrPacketDecoding)
}

func TestPlainCodecRejectsTaggedPackets(t *testing.T) {
	tagged, err := NewCodec(testSizer).Encode(testTag, []byte{1, 2, 3, 4}, []byte("x"))
	require.NoError(t, err)
	_, err = NewCodec(nil).DecodeHeader(tagged)
	assert.ErrorIs(t, err, ErrPacketDecoding)
}
