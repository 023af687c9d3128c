package cipher

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEncryptFailed   = errors.New("encrypt failed")
	ErrDecryptFailed   = errors.New("decrypt failed")
	ErrParamsNotSet    = errors.New("cipher parameters have not been set")
	ErrUnknownCipher   = errors.New("unknown cipher")

	// ErrUnAuthenticatedPacket is a decrypt failure: errors.Is(err, ErrDecryptFailed) holds.
	ErrUnAuthenticatedPacket = fmt.Errorf("%w: packet authentication failed", ErrDecryptFailed)
)

// invalidArgument wraps ErrInvalidArgument with a formatted reason.
func invalidArgument(format string, args ...interface{}) error {
	return oops.Wrapf(ErrInvalidArgument, format, args...)
}

// paramsNotSet reports that a direction has no usable engine, either because the
// parameters were never set or because a finalizing call already consumed them.
func paramsNotSet(op error, name string) error {
	return oops.Wrapf(fmt.Errorf("%w: %w", op, ErrParamsNotSet), "%s: set or reset parameters before use", name)
}
