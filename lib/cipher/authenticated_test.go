package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatedDetectsEveryByteFlip(t *testing.T) {
	for _, spec := range Registered() {
		if _, ok := mustNew(t, spec).(*Authenticated); !ok {
			continue
		}
		spec := spec
		t.Run(spec.Name, func(t *testing.T) {
			c, err := spec.New(keyFor(t, spec))
			require.NoError(t, err)
			plaintext := []byte("attack at dawn, bring snacks")

			require.NoError(t, c.ResetParams())
			params := make([][]byte, len(c.ParamSizes()))
			for i := range params {
				params[i], err = c.Param(i)
				require.NoError(t, err)
			}
			ciphertext, err := c.Encrypt(plaintext, true)
			require.NoError(t, err)

			for i := range ciphertext {
				mutated := append([]byte(nil), ciphertext...)
				mutated[i] ^= 0x01
				for j, p := range params {
					require.NoError(t, c.SetParam(j, p))
				}
				_, err := c.Decrypt(mutated, true)
				assert.ErrorIs(t, err, ErrUnAuthenticatedPacket, "byte %d", i)
				assert.ErrorIs(t, err, ErrDecryptFailed, "byte %d", i)
			}
		})
	}
}

func mustNew(t *testing.T, spec Spec) Cipher {
	t.Helper()
	c, err := spec.New(keyFor(t, spec))
	require.NoError(t, err)
	return c
}

func TestAuthenticatedAppendsDigest(t *testing.T) {
	inner := NewNoCipher()
	for _, d := range []Digest{DigestSHA256, DigestBLAKE2b256} {
		a, err := NewAuthenticated(inner, d)
		require.NoError(t, err)
		out, err := a.Encrypt([]byte("abc"), true)
		require.NoError(t, err)
		assert.Len(t, out, 3+d.Size(), d.String())
		assert.Equal(t, []byte("abc"), out[:3])
	}
}

func TestAuthenticatedShortMessage(t *testing.T) {
	a, err := NewAuthenticated(NewNoCipher(), DigestSHA256)
	require.NoError(t, err)
	_, err = a.Decrypt([]byte("tiny"), true)
	assert.ErrorIs(t, err, ErrUnAuthenticatedPacket)
}

func TestAuthenticatedStreaming(t *testing.T) {
	inner, err := NewChaCha20(randomBytes(t, 32))
	require.NoError(t, err)
	a, err := NewAuthenticated(inner, DigestBLAKE2b256)
	require.NoError(t, err)
	require.NoError(t, a.ResetParams())
	nonce, err := a.Param(0)
	require.NoError(t, err)

	plaintext := randomBytes(t, 300)
	var ciphertext []byte
	for _, chunk := range [][]byte{plaintext[:10], plaintext[10:200]} {
		out, err := a.Encrypt(chunk, false)
		require.NoError(t, err)
		ciphertext = append(ciphertext, out...)
	}
	out, err := a.Encrypt(plaintext[200:], true)
	require.NoError(t, err)
	ciphertext = append(ciphertext, out...)
	require.Len(t, ciphertext, 300+DigestBLAKE2b256.Size())

	receiver := a.Clone()
	require.NoError(t, receiver.SetParam(0, nonce))
	var recovered []byte
	for _, chunk := range [][]byte{ciphertext[:5], ciphertext[5:310]} {
		out, err := receiver.Decrypt(chunk, false)
		require.NoError(t, err)
		recovered = append(recovered, out...)
	}
	out, err = receiver.Decrypt(ciphertext[310:], true)
	require.NoError(t, err)
	recovered = append(recovered, out...)
	assert.Equal(t, plaintext, recovered)
}

func TestAuthenticatedConstruction(t *testing.T) {
	_, err := NewAuthenticated(nil, DigestSHA256)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	a, err := NewAuthenticated(NewNoCipher(), DigestSHA256)
	require.NoError(t, err)
	_, err = NewAuthenticated(a, DigestSHA256)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewAuthenticated(NewNoCipher(), Digest(0x70))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	d, err := ParseDigest("blake2b")
	require.NoError(t, err)
	assert.Equal(t, DigestBLAKE2b256, d)
	_, err = ParseDigest("md5")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAuthenticatedTagDiffersFromInner(t *testing.T) {
	inner, err := NewAESCTR(make([]byte, 16))
	require.NoError(t, err)
	a, err := NewAuthenticated(inner, DigestSHA256)
	require.NoError(t, err)
	assert.NotEqual(t, inner.Tag(), a.Tag())
	assert.Equal(t, "Authenticated(AES-CTR,SHA-256)", a.Name())

	spec, ok := Lookup(a.Tag())
	require.True(t, ok)
	assert.Equal(t, a.Name(), spec.Name)
}
