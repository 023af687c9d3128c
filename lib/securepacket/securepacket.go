// Package securepacket frames cipher output as packets. The packet tag is
// the cipher identity and the extension block carries the per-message
// cipher parameters, so a receiver holding the same key can decrypt any
// packet on its own.
package securepacket

import (
	"errors"
	"fmt"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-stcp/stcp/lib/cipher"
	"github.com/go-stcp/stcp/lib/packet"
)

var log = logger.GetGoI2PLogger()

// ErrCipherTypeMismatch means the packet was produced by a different cipher
// variant than the local one. It is fatal for the packet, not the connection.
var ErrCipherTypeMismatch = errors.New("cipher type mismatch")

// sizerFor resolves extension sizes for the local cipher first, then for
// every registered variant, so packets from a misconfigured peer still frame
// correctly and the stream stays in sync.
func sizerFor(c cipher.Cipher) packet.ExtensionSizer {
	local := packet.Tag(c.Tag())
	localSize := cipher.ParamBlockSize(c)
	return packet.SizerFunc(func(tag packet.Tag) (int, error) {
		if tag == local {
			return localSize, nil
		}
		return cipher.ParamBlockSizeForTag(cipher.Tag(tag))
	})
}

// Encoder encrypts payloads and frames them.
type Encoder struct {
	cipher cipher.Cipher
	codec  *packet.Codec
}

// NewEncoder returns an encoder over c. The caller owns parameter resets.
func NewEncoder(c cipher.Cipher) *Encoder {
	return &Encoder{cipher: c, codec: packet.NewCodec(sizerFor(c))}
}

// Encode encrypts payload under the cipher's current parameters and returns
// the framed packet. The parameters are consumed.
func (e *Encoder) Encode(payload []byte) ([]byte, error) {
	sizes := e.cipher.ParamSizes()
	ext := make([]byte, 0, cipher.ParamBlockSize(e.cipher))
	for i := range sizes {
		p, err := e.cipher.Param(i)
		if err != nil {
			return nil, oops.Wrapf(err, "reading %s parameter %d", e.cipher.Name(), i)
		}
		ext = append(ext, p...)
	}
	ciphertext, err := e.cipher.Encrypt(payload, true)
	if err != nil {
		return nil, oops.Wrapf(err, "encrypting %d byte payload", len(payload))
	}
	return e.codec.Encode(packet.Tag(e.cipher.Tag()), ext, ciphertext)
}

// Decoder checks the cipher identity of packets and decrypts them.
type Decoder struct {
	cipher cipher.Cipher
	codec  *packet.Codec
}

// NewDecoder returns a decoder over c. Decoding overwrites the parameters of c.
func NewDecoder(c cipher.Cipher) *Decoder {
	return &Decoder{cipher: c, codec: packet.NewCodec(sizerFor(c))}
}

// DecodeHeader decodes the header at the start of data.
func (d *Decoder) DecodeHeader(data []byte) (packet.Header, error) {
	return d.codec.DecodeHeader(data)
}

// Decode decodes exactly one packet and returns the plaintext.
func (d *Decoder) Decode(data []byte) ([]byte, error) {
	p, err := d.codec.DecodePacket(data)
	if err != nil {
		return nil, err
	}

	local := d.cipher.Tag()
	if remote := cipher.Tag(p.Tag); remote != local {
		remoteName := "unknown"
		if spec, ok := cipher.Lookup(remote); ok {
			remoteName = spec.Name
		}
		log.WithFields(logger.Fields{
			"at":         "securepacket.Decode",
			"local":      d.cipher.Name(),
			"remote":     remoteName,
			"remote_tag": remote.String(),
		}).Debug("cipher_type_mismatch")
		return nil, oops.Wrapf(ErrCipherTypeMismatch, "local %s (%s), packet %s (%s)", d.cipher.Name(), local, remoteName, remote)
	}

	off := 0
	for i, size := range d.cipher.ParamSizes() {
		if err := d.cipher.SetParam(i, p.Extension[off:off+size]); err != nil {
			return nil, oops.Wrapf(err, "applying %s parameter %d", d.cipher.Name(), i)
		}
		off += size
	}

	plaintext, err := d.cipher.Decrypt(p.Payload, true)
	if err != nil {
		if !errors.Is(err, cipher.ErrDecryptFailed) {
			err = fmt.Errorf("%w: %w", cipher.ErrDecryptFailed, err)
		}
		return nil, oops.Wrapf(err, "decrypting %d byte %s packet", len(p.Payload), d.cipher.Name())
	}
	return plaintext, nil
}
