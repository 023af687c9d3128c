package cipher

// NoCipher leaves payloads untouched. It has no key and no parameters.
type NoCipher struct{}

var _ Cipher = (*NoCipher)(nil)

// NewNoCipher returns the identity cipher.
func NewNoCipher() *NoCipher {
	return &NoCipher{}
}

func (*NoCipher) Name() string { return NameNoCipher }

func (*NoCipher) Tag() Tag { return Tag{TagVersion, idNoCipher} }

// ResetKey accepts any key and ignores it.
func (*NoCipher) ResetKey([]byte) error { return nil }

func (*NoCipher) Encrypt(plaintext []byte, _ bool) ([]byte, error) {
	return cloneBytes(plaintext), nil
}

func (*NoCipher) Decrypt(ciphertext []byte, _ bool) ([]byte, error) {
	return cloneBytes(ciphertext), nil
}

func (*NoCipher) ParamSizes() []int { return nil }

func (c *NoCipher) SetParam(index int, _ []byte) error {
	return checkIndex(c.Name(), nil, index)
}

func (c *NoCipher) Param(index int) ([]byte, error) {
	return nil, checkIndex(c.Name(), nil, index)
}

func (*NoCipher) ResetParams() error { return nil }

func (*NoCipher) Clone() Cipher { return &NoCipher{} }
