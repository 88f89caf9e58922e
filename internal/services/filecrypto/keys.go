package filecrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// GenerateKey returns a fresh 256-bit key from crypto/rand, hex-encoded.
func GenerateKey() (string, error) {
	b := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateIV returns a fresh 128-bit IV, hex-encoded. Callers must use a new
// IV for every encryption.
func GenerateIV() (string, error) {
	b := make([]byte, BlockSize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CalculateHash returns the hex SHA-256 digest of data.
func CalculateHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
