package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"sync"

	"github.com/go-i2p/crypto/rand"
	"github.com/samber/oops"
)

// AESCBC is AES in CBC mode with PKCS#7 padding and a 16-byte IV per message.
//
// Non-finalizing calls buffer partial blocks: Encrypt emits only whole
// blocks and pads on finalize, Decrypt always holds back the last block
// until finalize so the padding can be removed.
type AESCBC struct {
	mu  sync.Mutex
	key []byte
	iv  []byte

	enc        stdcipher.BlockMode
	dec        stdcipher.BlockMode
	encPending []byte
	decPending []byte
}

var _ Cipher = (*AESCBC)(nil)

// NewAESCBC creates an AES-CBC cipher. The key must be 16, 24, 32 or 64 bytes.
func NewAESCBC(key []byte) (*AESCBC, error) {
	if err := validateAESKey(key); err != nil {
		return nil, err
	}
	return &AESCBC{key: cloneBytes(key)}, nil
}

func (*AESCBC) Name() string { return NameAESCBC }

func (*AESCBC) Tag() Tag { return Tag{TagVersion, idAESCBC} }

func (c *AESCBC) ResetKey(key []byte) error {
	if err := validateAESKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = cloneBytes(key)
	c.iv, c.enc, c.dec = nil, nil, nil
	c.encPending, c.decPending = nil, nil
	return nil
}

func (c *AESCBC) Encrypt(plaintext []byte, finalize bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enc == nil {
		return nil, paramsNotSet(ErrEncryptFailed, NameAESCBC)
	}

	data := append(c.encPending, plaintext...)
	n := len(data) - len(data)%aes.BlockSize
	if finalize {
		data = pkcs7Pad(data, aes.BlockSize)
		n = len(data)
	}

	out := make([]byte, n)
	c.enc.CryptBlocks(out, data[:n])
	c.encPending = cloneBytes(data[n:])
	if finalize {
		c.enc, c.encPending = nil, nil
	}
	return out, nil
}

func (c *AESCBC) Decrypt(ciphertext []byte, finalize bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dec == nil {
		return nil, paramsNotSet(ErrDecryptFailed, NameAESCBC)
	}

	data := append(c.decPending, ciphertext...)
	if finalize {
		c.decPending = nil
		dec := c.dec
		c.dec = nil
		if len(data) == 0 || len(data)%aes.BlockSize != 0 {
			return nil, oops.Wrapf(ErrDecryptFailed, "ciphertext length %d is not a multiple of the block size", len(data))
		}
		padded := make([]byte, len(data))
		dec.CryptBlocks(padded, data)
		plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
		if err != nil {
			return nil, oops.Wrapf(ErrDecryptFailed, "%s: %v", NameAESCBC, err)
		}
		return plaintext, nil
	}

	n := len(data) - len(data)%aes.BlockSize
	if n == len(data) && n > 0 {
		n -= aes.BlockSize
	}
	out := make([]byte, n)
	c.dec.CryptBlocks(out, data[:n])
	c.decPending = cloneBytes(data[n:])
	return out, nil
}

func (*AESCBC) ParamSizes() []int { return []int{aes.BlockSize} }

func (c *AESCBC) SetParam(index int, value []byte) error {
	if err := checkIndex(NameAESCBC, c.ParamSizes(), index); err != nil {
		return err
	}
	if len(value) != aes.BlockSize {
		return invalidArgument("invalid length of iv value, expected %d bytes, got %d", aes.BlockSize, len(value))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setIVLocked(cloneBytes(value))
}

func (c *AESCBC) setIVLocked(iv []byte) error {
	engineKey, err := aesEngineKey(c.key)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(engineKey)
	if err != nil {
		log.WithError(err).Error("Failed to create AES cipher")
		return oops.Wrapf(err, "failed to create AES cipher")
	}
	c.iv = iv
	c.enc = stdcipher.NewCBCEncrypter(block, iv)
	c.dec = stdcipher.NewCBCDecrypter(block, iv)
	c.encPending, c.decPending = nil, nil
	return nil
}

func (c *AESCBC) Param(index int) ([]byte, error) {
	if err := checkIndex(NameAESCBC, c.ParamSizes(), index); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.iv == nil {
		return nil, oops.Wrapf(ErrParamsNotSet, "%s iv", NameAESCBC)
	}
	return cloneBytes(c.iv), nil
}

func (c *AESCBC) ResetParams() error {
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return oops.Wrapf(err, "%s: generating iv", NameAESCBC)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setIVLocked(iv)
}

func (c *AESCBC) Clone() Cipher {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &AESCBC{key: cloneBytes(c.key)}
}
