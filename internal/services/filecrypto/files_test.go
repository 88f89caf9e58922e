package filecrypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "plain.bin")
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for _, alg := range []string{"aes", "camellia", "aria", "lea"} {
		t.Run(alg, func(t *testing.T) {
			u, err := New(alg)
			require.NoError(t, err)

			plaintext := make([]byte, 50*1024+7)
			_, err = rand.Read(plaintext)
			require.NoError(t, err)
			src := writeTempFile(t, plaintext)

			key, err := GenerateKey()
			require.NoError(t, err)
			iv, err := GenerateIV()
			require.NoError(t, err)

			res, err := u.EncryptFile(src, key, iv)
			require.NoError(t, err)
			assert.Equal(t, src+".enc", res.EncryptedPath)
			assert.Len(t, res.Hash, 64)

			ciphertext, err := os.ReadFile(res.EncryptedPath)
			require.NoError(t, err)
			assert.NotEqual(t, plaintext, ciphertext)
			assert.Equal(t, CalculateHash(ciphertext), res.Hash)

			out := filepath.Join(t.TempDir(), "out.bin")
			require.NoError(t, u.DecryptFile(res.EncryptedPath, key, iv, out))
			got, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(plaintext, got))
		})
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	u, err := New("aes")
	require.NoError(t, err)
	src := writeTempFile(t, []byte("the quick brown fox"))

	key, _ := GenerateKey()
	iv, _ := GenerateIV()
	res, err := u.EncryptFile(src, key, iv)
	require.NoError(t, err)

	wrongKey, _ := GenerateKey()
	out := filepath.Join(t.TempDir(), "out.bin")
	err = u.DecryptFile(res.EncryptedPath, wrongKey, iv, out)
	require.Error(t, err)
	var derr *DecryptionError
	assert.True(t, errors.As(err, &derr))
}

func TestEncryptMissingFile(t *testing.T) {
	u, _ := New("aes")
	key, _ := GenerateKey()
	iv, _ := GenerateIV()
	_, err := u.EncryptFile(filepath.Join(t.TempDir(), "nope.bin"), key, iv)
	var eerr *EncryptionError
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, "read", eerr.Op)
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := New("rot13")
	require.Error(t, err)
}

func TestCalculateHashDeterministic(t *testing.T) {
	data := []byte("same bytes, same digest")
	assert.Equal(t, CalculateHash(data), CalculateHash(data))
	assert.Len(t, CalculateHash(data), 64)

	// flipping one bit must change the digest
	flipped := append([]byte(nil), data...)
	flipped[0] ^= 0x01
	assert.NotEqual(t, CalculateHash(data), CalculateHash(flipped))
}

func TestKeyAndIVUniqueness(t *testing.T) {
	const n = 1000
	keys := make(map[string]struct{}, n)
	ivs := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		k, err := GenerateKey()
		require.NoError(t, err)
		require.Len(t, k, 2*KeySize)
		keys[k] = struct{}{}

		iv, err := GenerateIV()
		require.NoError(t, err)
		require.Len(t, iv, 2*BlockSize)
		ivs[iv] = struct{}{}
	}
	assert.Len(t, keys, n)
	assert.Len(t, ivs, n)
}

func TestPKCS7(t *testing.T) {
	for _, size := range []int{0, 1, 15, 16, 17, 1000} {
		in := make([]byte, size)
		padded := pkcs7Pad(in)
		require.Zero(t, len(padded)%BlockSize)
		out, err := pkcs7Unpad(padded)
		require.NoError(t, err)
		assert.Equal(t, size, len(out))
	}
	_, err := pkcs7Unpad([]byte{1, 2, 3})
	assert.Error(t, err)
}
