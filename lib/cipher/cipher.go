package cipher

import (
	"encoding/hex"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// TagVersion is the first byte of every identity tag issued by this package.
const TagVersion = 0x01

// Tag is the 2-byte cipher identity carried in every secure packet header.
// Byte 0 is the tag scheme version, byte 1 identifies the variant: the low
// nibble names the base cipher, the high nibble the authentication digest.
type Tag [2]byte

func (t Tag) String() string {
	return hex.EncodeToString(t[:])
}

// Base cipher identifiers (low nibble of Tag[1]).
const (
	idNoCipher byte = 0x00
	idXor      byte = 0x01
	idAESCTR   byte = 0x02
	idAESCBC   byte = 0x03
	idChaCha20 byte = 0x04
)

// Cipher is a stateful symmetric cipher whose per-message parameters
// (nonce / IV) are carried next to the ciphertext.
//
// A Cipher can not encrypt or decrypt until its parameters are set with
// SetParam or ResetParams. A finalizing Encrypt or Decrypt consumes the
// parameters of that direction; a new message needs new parameters.
type Cipher interface {
	// Name is the registered name of the cipher variant.
	Name() string
	// Tag is the identity tag written into packet headers.
	Tag() Tag

	// ResetKey validates and swaps the long-lived key.
	// Current parameters are discarded.
	ResetKey(key []byte) error

	// Encrypt encrypts plaintext with the current parameters. With finalize
	// false the call may be followed by more Encrypt calls for the same message.
	Encrypt(plaintext []byte, finalize bool) ([]byte, error)
	// Decrypt is the inverse of Encrypt.
	Decrypt(ciphertext []byte, finalize bool) ([]byte, error)

	// ParamSizes returns the byte size of every parameter slot, in order.
	ParamSizes() []int
	// SetParam sets one parameter slot and rebuilds the engines.
	SetParam(index int, value []byte) error
	// Param returns a copy of one parameter slot.
	Param(index int) ([]byte, error)
	// ResetParams draws fresh random values for every slot.
	ResetParams() error

	// Clone returns a cipher with the same key and configuration
	// and no parameter state.
	Clone() Cipher
}

// ParamBlockSize is the total size of all parameter slots of c.
func ParamBlockSize(c Cipher) int {
	return sumSizes(c.ParamSizes())
}

func sumSizes(sizes []int) int {
	n := 0
	for _, s := range sizes {
		n += s
	}
	return n
}

// checkIndex validates a parameter slot index against sizes.
func checkIndex(name string, sizes []int, index int) error {
	if index < 0 || index >= len(sizes) {
		return invalidArgument("%s has %d parameter slot(s), index %d out of range", name, len(sizes), index)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
