package cipher

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"hash"
	"sync"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/crypto/blake2b"
)

// Digest selects the keyless hash appended by Authenticated. Its value is
// the bit pattern merged into the high nibble of Tag[1].
type Digest byte

const (
	DigestSHA256     Digest = 0x10
	DigestBLAKE2b256 Digest = 0x20
)

func (d Digest) String() string {
	switch d {
	case DigestSHA256:
		return "SHA-256"
	case DigestBLAKE2b256:
		return "BLAKE2b-256"
	default:
		return fmt.Sprintf("Digest(0x%02x)", byte(d))
	}
}

// ParseDigest maps a digest name to a Digest.
func ParseDigest(name string) (Digest, error) {
	switch name {
	case "sha256", "SHA-256", "":
		return DigestSHA256, nil
	case "blake2b", "blake2b256", "BLAKE2b-256":
		return DigestBLAKE2b256, nil
	default:
		return 0, invalidArgument("unknown digest %q", name)
	}
}

func (d Digest) newHash() (hash.Hash, error) {
	switch d {
	case DigestSHA256:
		return sha256.New(), nil
	case DigestBLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, invalidArgument("unknown digest %s", d)
	}
}

// Size is the digest length in bytes.
func (d Digest) Size() int {
	switch d {
	case DigestSHA256:
		return sha256.Size
	case DigestBLAKE2b256:
		return blake2b.Size256
	default:
		return 0
	}
}

// Authenticated wraps a Cipher and appends a digest of the plaintext before
// encryption. Decrypt recomputes the digest over the recovered plaintext and
// fails with ErrUnAuthenticatedPacket on mismatch.
//
// The digest is keyless: integrity relies on the inner cipher's key. Over a
// stream cipher a modified ciphertext yields a modified plaintext whose
// digest no longer matches.
type Authenticated struct {
	inner  Cipher
	digest Digest

	mu         sync.Mutex
	encHash    hash.Hash
	decHash    hash.Hash
	decPending []byte
}

var _ Cipher = (*Authenticated)(nil)

// NewAuthenticated wraps inner with the given digest.
func NewAuthenticated(inner Cipher, digest Digest) (*Authenticated, error) {
	if inner == nil {
		return nil, invalidArgument("authenticated wrapper needs an inner cipher")
	}
	if _, ok := inner.(*Authenticated); ok {
		return nil, invalidArgument("authenticated wrapper can not wrap another authenticated wrapper")
	}
	if _, err := digest.newHash(); err != nil {
		return nil, err
	}
	return &Authenticated{inner: inner, digest: digest}, nil
}

// Inner returns the wrapped cipher.
func (a *Authenticated) Inner() Cipher { return a.inner }

// Digest returns the digest used by the wrapper.
func (a *Authenticated) Digest() Digest { return a.digest }

func (a *Authenticated) Name() string {
	return authenticatedName(a.inner.Name(), a.digest)
}

func authenticatedName(inner string, d Digest) string {
	return fmt.Sprintf("Authenticated(%s,%s)", inner, d)
}

func (a *Authenticated) Tag() Tag {
	t := a.inner.Tag()
	t[1] |= byte(a.digest)
	return t
}

func (a *Authenticated) ResetKey(key []byte) error {
	a.mu.Lock()
	a.encHash, a.decHash, a.decPending = nil, nil, nil
	a.mu.Unlock()
	return a.inner.ResetKey(key)
}

func (a *Authenticated) Encrypt(plaintext []byte, finalize bool) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.encHash == nil {
		h, err := a.digest.newHash()
		if err != nil {
			return nil, oops.Wrapf(ErrEncryptFailed, "%s: %v", a.Name(), err)
		}
		a.encHash = h
	}
	a.encHash.Write(plaintext)
	if !finalize {
		out, err := a.inner.Encrypt(plaintext, false)
		if err != nil {
			a.encHash = nil
		}
		return out, err
	}

	sum := a.encHash.Sum(nil)
	a.encHash = nil
	authenticated := make([]byte, 0, len(plaintext)+len(sum))
	authenticated = append(authenticated, plaintext...)
	authenticated = append(authenticated, sum...)
	return a.inner.Encrypt(authenticated, true)
}

func (a *Authenticated) Decrypt(ciphertext []byte, finalize bool) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	recovered, err := a.inner.Decrypt(ciphertext, finalize)
	if err != nil {
		a.decHash, a.decPending = nil, nil
		if errors.Is(err, ErrParamsNotSet) {
			return nil, err
		}
		return nil, oops.Wrapf(ErrUnAuthenticatedPacket, "%s: %v", a.Name(), err)
	}
	if a.decHash == nil {
		h, err := a.digest.newHash()
		if err != nil {
			return nil, oops.Wrapf(ErrDecryptFailed, "%s: %v", a.Name(), err)
		}
		a.decHash = h
	}

	data := append(a.decPending, recovered...)
	size := a.digest.Size()

	if !finalize {
		// The trailing digest may already be in data; never emit its bytes.
		n := len(data) - size
		if n <= 0 {
			a.decPending = cloneBytes(data)
			return []byte{}, nil
		}
		a.decHash.Write(data[:n])
		a.decPending = cloneBytes(data[n:])
		return cloneBytes(data[:n]), nil
	}

	h := a.decHash
	a.decHash, a.decPending = nil, nil
	if len(data) < size {
		return nil, oops.Wrapf(ErrUnAuthenticatedPacket, "%s: message shorter than digest", a.Name())
	}
	body, got := data[:len(data)-size], data[len(data)-size:]
	h.Write(body)
	if subtle.ConstantTimeCompare(h.Sum(nil), got) != 1 {
		log.WithFields(logger.Fields{
			"at":     "cipher.Authenticated.Decrypt",
			"cipher": a.Name(),
			"length": len(body),
		}).Debug("digest_mismatch")
		return nil, oops.Wrapf(ErrUnAuthenticatedPacket, "%s: digest mismatch", a.Name())
	}
	return cloneBytes(body), nil
}

func (a *Authenticated) ParamSizes() []int { return a.inner.ParamSizes() }

func (a *Authenticated) SetParam(index int, value []byte) error {
	a.mu.Lock()
	a.encHash, a.decHash, a.decPending = nil, nil, nil
	a.mu.Unlock()
	return a.inner.SetParam(index, value)
}

func (a *Authenticated) Param(index int) ([]byte, error) { return a.inner.Param(index) }

func (a *Authenticated) ResetParams() error {
	a.mu.Lock()
	a.encHash, a.decHash, a.decPending = nil, nil, nil
	a.mu.Unlock()
	return a.inner.ResetParams()
}

func (a *Authenticated) Clone() Cipher {
	return &Authenticated{inner: a.inner.Clone(), digest: a.digest}
}
