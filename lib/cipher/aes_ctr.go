package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"

	"github.com/samber/oops"
)

var aesCTRSuite = &streamSuite{
	name:        NameAESCTR,
	id:          idAESCTR,
	nonceSize:   aes.BlockSize,
	validateKey: validateAESKey,
	newStream: func(key, nonce []byte) (stdcipher.Stream, error) {
		engineKey, err := aesEngineKey(key)
		if err != nil {
			return nil, err
		}
		block, err := aes.NewCipher(engineKey)
		if err != nil {
			return nil, oops.Wrapf(err, "failed to create AES cipher")
		}
		return stdcipher.NewCTR(block, nonce), nil
	},
}

// AESCTR is AES in counter mode with a 16-byte nonce per message.
type AESCTR struct {
	*streamCipher
}

var _ Cipher = (*AESCTR)(nil)

// NewAESCTR creates an AES-CTR cipher. The key must be 16, 24, 32 or 64 bytes.
func NewAESCTR(key []byte) (*AESCTR, error) {
	s, err := newStreamCipher(aesCTRSuite, key)
	if err != nil {
		return nil, err
	}
	return &AESCTR{s}, nil
}

func (c *AESCTR) Clone() Cipher {
	return &AESCTR{c.streamCipher.clone()}
}
