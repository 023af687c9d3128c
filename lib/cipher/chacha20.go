package cipher

import (
	stdcipher "crypto/cipher"

	"github.com/samber/oops"
	"golang.org/x/crypto/chacha20"
)

var chacha20Suite = &streamSuite{
	name:      NameChaCha20,
	id:        idChaCha20,
	nonceSize: chacha20.NonceSize,
	validateKey: func(key []byte) error {
		if len(key) != chacha20.KeySize {
			return invalidArgument("key of %s must be %d bytes, got %d", NameChaCha20, chacha20.KeySize, len(key))
		}
		return nil
	},
	newStream: func(key, nonce []byte) (stdcipher.Stream, error) {
		c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
		if err != nil {
			return nil, oops.Wrapf(err, "failed to create ChaCha20 cipher")
		}
		return c, nil
	},
}

// ChaCha20 is the ChaCha20 stream cipher with a 12-byte nonce per message.
// Like AES-CTR it gives confidentiality only; wrap it with Authenticated
// for integrity.
type ChaCha20 struct {
	*streamCipher
}

var _ Cipher = (*ChaCha20)(nil)

// NewChaCha20 creates a ChaCha20 cipher from a 32-byte key.
func NewChaCha20(key []byte) (*ChaCha20, error) {
	s, err := newStreamCipher(chacha20Suite, key)
	if err != nil {
		return nil, err
	}
	return &ChaCha20{s}, nil
}

func (c *ChaCha20) Clone() Cipher {
	return &ChaCha20{c.streamCipher.clone()}
}
