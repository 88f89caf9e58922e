// Package filecrypto holds the primitives used on file bytes at rest:
// key/iv generation, SHA-256 content hashing and whole-file CBC
// encryption with a pluggable 256-bit block cipher.
package filecrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"

	"github.com/RyuaNerin/go-krypto/aria"
	"github.com/RyuaNerin/go-krypto/lea"
	"github.com/aead/camellia"
)

const (
	// KeySize is fixed at 256 bits for every supported algorithm.
	KeySize = 32
	// BlockSize is 16 bytes for all supported ciphers; the IV matches it.
	BlockSize = 16

	DefaultAlgorithm = "aes"
)

// newBlockCipher builds the configured block cipher. All supported
// algorithms take a 32-byte key and have a 16-byte block.
func newBlockCipher(algorithm string, key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "aes":
		return aes.NewCipher(key)
	case "camellia":
		return camellia.NewCipher(key)
	case "aria":
		return aria.NewCipher(key)
	case "lea":
		return lea.NewCipher(key)
	default:
		return nil, fmt.Errorf("unsupported cipher algorithm %q", algorithm)
	}
}

// SupportedAlgorithm reports whether algorithm names a usable cipher.
func SupportedAlgorithm(algorithm string) bool {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "aes", "camellia", "aria", "lea":
		return true
	}
	return false
}

func pkcs7Pad(in []byte) []byte {
	n := BlockSize - len(in)%BlockSize
	out := make([]byte, len(in)+n)
	copy(out, in)
	for i := len(in); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(in []byte) ([]byte, error) {
	if len(in) == 0 || len(in)%BlockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(in))
	}
	n := int(in[len(in)-1])
	if n == 0 || n > BlockSize || n > len(in) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range in[len(in)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return in[:len(in)-n], nil
}
