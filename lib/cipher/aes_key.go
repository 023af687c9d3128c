package cipher

import (
	"crypto/sha256"
	"io"

	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

// aes512Info is the HKDF info string used to condense 64-byte keys.
const aes512Info = "stcp aes-512 engine key v1"

// validateAESKey accepts 128, 192, 256 and 512 bit keys.
func validateAESKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32, 64:
		return nil
	default:
		return invalidArgument("key size of AES must be 128, 192, 256 or 512 bits, got %d bits", len(key)*8)
	}
}

// aesEngineKey returns the key handed to the AES block cipher. AES has no
// 512-bit key schedule, so 64-byte keys are condensed to 32 bytes with
// HKDF-SHA256.
func aesEngineKey(key []byte) ([]byte, error) {
	if len(key) != 64 {
		return key, nil
	}
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(aes512Info)), out); err != nil {
		return nil, oops.Wrapf(err, "deriving AES engine key")
	}
	return out, nil
}
