package cipher

import (
	stdcipher "crypto/cipher"
)

// xorStream XORs every byte with a single key byte.
type xorStream struct {
	k byte
}

func (x xorStream) XORKeyStream(dst, src []byte) {
	for i, b := range src {
		dst[i] = b ^ x.k
	}
}

var xorSuite = &streamSuite{
	name:      NameXor,
	id:        idXor,
	nonceSize: 1,
	validateKey: func(key []byte) error {
		if len(key) != 1 {
			return invalidArgument("key of %s must be 1 byte, got %d", NameXor, len(key))
		}
		return nil
	},
	newStream: func(key, nonce []byte) (stdcipher.Stream, error) {
		return xorStream{k: key[0] ^ nonce[0]}, nil
	},
}

// XorCipher encrypts with c = p xor key xor iv, using a 1-byte key and a
// 1-byte per-message IV. It only obfuscates; it is not a secure cipher.
type XorCipher struct {
	*streamCipher
}

var _ Cipher = (*XorCipher)(nil)

// NewXorCipher creates a XorCipher from a 1-byte key.
func NewXorCipher(key []byte) (*XorCipher, error) {
	s, err := newStreamCipher(xorSuite, key)
	if err != nil {
		return nil, err
	}
	return &XorCipher{s}, nil
}

func (c *XorCipher) Clone() Cipher {
	return &XorCipher{c.streamCipher.clone()}
}
