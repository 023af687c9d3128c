package cipher

import (
	stdcipher "crypto/cipher"
	"sync"

	"github.com/go-i2p/crypto/rand"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
)

// streamSuite describes one keystream cipher: how to validate a key and how
// to build a keystream from a key and a nonce.
type streamSuite struct {
	name        string
	id          byte
	nonceSize   int
	validateKey func(key []byte) error
	newStream   func(key, nonce []byte) (stdcipher.Stream, error)
}

// streamCipher is the shared implementation of the nonce-per-message
// keystream ciphers (Xor, AES-CTR, ChaCha20). Encrypt and decrypt keep
// separate keystreams so one message can be encrypted while another is
// decrypted under the same parameters.
type streamCipher struct {
	suite *streamSuite

	mu    sync.Mutex
	key   []byte
	nonce []byte // nil until set
	enc   stdcipher.Stream
	dec   stdcipher.Stream
}

func newStreamCipher(suite *streamSuite, key []byte) (*streamCipher, error) {
	if err := suite.validateKey(key); err != nil {
		return nil, err
	}
	return &streamCipher{suite: suite, key: cloneBytes(key)}, nil
}

func (s *streamCipher) Name() string { return s.suite.name }

func (s *streamCipher) Tag() Tag { return Tag{TagVersion, s.suite.id} }

func (s *streamCipher) ResetKey(key []byte) error {
	if err := s.suite.validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = cloneBytes(key)
	s.nonce, s.enc, s.dec = nil, nil, nil
	log.WithField("cipher", s.suite.name).Debug("cipher_key_reset")
	return nil
}

func (s *streamCipher) Encrypt(plaintext []byte, finalize bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return nil, paramsNotSet(ErrEncryptFailed, s.suite.name)
	}
	out := make([]byte, len(plaintext))
	s.enc.XORKeyStream(out, plaintext)
	if finalize {
		s.enc = nil
	}
	return out, nil
}

func (s *streamCipher) Decrypt(ciphertext []byte, finalize bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec == nil {
		return nil, paramsNotSet(ErrDecryptFailed, s.suite.name)
	}
	out := make([]byte, len(ciphertext))
	s.dec.XORKeyStream(out, ciphertext)
	if finalize {
		s.dec = nil
	}
	return out, nil
}

func (s *streamCipher) ParamSizes() []int { return []int{s.suite.nonceSize} }

func (s *streamCipher) SetParam(index int, value []byte) error {
	if err := checkIndex(s.suite.name, s.ParamSizes(), index); err != nil {
		return err
	}
	if len(value) != s.suite.nonceSize {
		return invalidArgument("%s nonce must be %d bytes, got %d", s.suite.name, s.suite.nonceSize, len(value))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setNonceLocked(cloneBytes(value))
}

func (s *streamCipher) setNonceLocked(nonce []byte) error {
	enc, err := s.suite.newStream(s.key, nonce)
	if err != nil {
		return oops.Wrapf(err, "%s: building keystream", s.suite.name)
	}
	dec, err := s.suite.newStream(s.key, nonce)
	if err != nil {
		return oops.Wrapf(err, "%s: building keystream", s.suite.name)
	}
	s.nonce, s.enc, s.dec = nonce, enc, dec
	return nil
}

func (s *streamCipher) Param(index int) ([]byte, error) {
	if err := checkIndex(s.suite.name, s.ParamSizes(), index); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonce == nil {
		return nil, oops.Wrapf(ErrParamsNotSet, "%s nonce", s.suite.name)
	}
	return cloneBytes(s.nonce), nil
}

func (s *streamCipher) ResetParams() error {
	nonce := make([]byte, s.suite.nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":     "cipher.ResetParams",
			"cipher": s.suite.name,
		}).Error("nonce_generation_failed")
		return oops.Wrapf(err, "%s: generating nonce", s.suite.name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setNonceLocked(nonce)
}

func (s *streamCipher) clone() *streamCipher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &streamCipher{suite: s.suite, key: cloneBytes(s.key)}
}
