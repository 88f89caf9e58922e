package filecrypto

import (
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"os"

	"coffre/internal/util"
)

// EncryptResult describes one produced ciphertext file.
type EncryptResult struct {
	EncryptedPath string
	// Hash is the hex SHA-256 of the ciphertext bytes. It is the value the
	// ledger anchors and the one verified before any later decryption.
	Hash string
}

// Unit performs file encryption and decryption with one configured
// algorithm. The zero value uses AES.
type Unit struct {
	Algorithm string
}

// New returns a Unit for the given algorithm name.
func New(algorithm string) (*Unit, error) {
	if !SupportedAlgorithm(algorithm) {
		return nil, fmt.Errorf("unsupported cipher algorithm %q", algorithm)
	}
	return &Unit{Algorithm: algorithm}, nil
}

func decodeKeyIV(keyHex, ivHex string) (key, iv []byte, err error) {
	normKey, ok := util.NormalizeHex(keyHex)
	if !ok {
		return nil, nil, fmt.Errorf("key is not hex")
	}
	normIV, ok := util.NormalizeHex(ivHex)
	if !ok {
		return nil, nil, fmt.Errorf("iv is not hex")
	}
	key, _ = hex.DecodeString(normKey)
	iv, _ = hex.DecodeString(normIV)
	if len(iv) != BlockSize {
		return nil, nil, fmt.Errorf("iv must be %d bytes, got %d", BlockSize, len(iv))
	}
	return key, iv, nil
}

// EncryptFile reads the whole file at path, encrypts it in CBC mode with
// PKCS#7 padding and writes the ciphertext to a sibling ".enc" path with
// owner-only permissions. Files are capped at a few megabytes upstream, so
// whole-file reads are fine here.
func (u *Unit) EncryptFile(path, keyHex, ivHex string) (EncryptResult, error) {
	key, iv, err := decodeKeyIV(keyHex, ivHex)
	if err != nil {
		return EncryptResult{}, &EncryptionError{Op: "keys", Path: path, Err: err}
	}
	blk, err := newBlockCipher(u.Algorithm, key)
	if err != nil {
		return EncryptResult{}, &EncryptionError{Op: "cipher", Path: path, Err: err}
	}
	plaintext, err := os.ReadFile(path)
	if err != nil {
		return EncryptResult{}, &EncryptionError{Op: "read", Path: path, Err: err}
	}
	padded := pkcs7Pad(plaintext)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(blk, iv).CryptBlocks(ciphertext, padded)

	encPath := path + ".enc"
	if err := os.WriteFile(encPath, ciphertext, 0o600); err != nil {
		return EncryptResult{}, &EncryptionError{Op: "write", Path: encPath, Err: err}
	}
	return EncryptResult{EncryptedPath: encPath, Hash: CalculateHash(ciphertext)}, nil
}

// DecryptFile reverses EncryptFile, writing the plaintext to outPath. A key
// or IV that does not match the ciphertext fails padding validation and
// returns a DecryptionError.
func (u *Unit) DecryptFile(encryptedPath, keyHex, ivHex, outPath string) error {
	key, iv, err := decodeKeyIV(keyHex, ivHex)
	if err != nil {
		return &DecryptionError{Op: "keys", Path: encryptedPath, Err: err}
	}
	blk, err := newBlockCipher(u.Algorithm, key)
	if err != nil {
		return &DecryptionError{Op: "cipher", Path: encryptedPath, Err: err}
	}
	ciphertext, err := os.ReadFile(encryptedPath)
	if err != nil {
		return &DecryptionError{Op: "read", Path: encryptedPath, Err: err}
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return &DecryptionError{Op: "cipher", Path: encryptedPath, Err: fmt.Errorf("ciphertext length %d not a block multiple", len(ciphertext))}
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(blk, iv).CryptBlocks(padded, ciphertext)
	plaintext, err := pkcs7Unpad(padded)
	if err != nil {
		return &DecryptionError{Op: "unpad", Path: encryptedPath, Err: err}
	}
	if err := os.WriteFile(outPath, plaintext, 0o600); err != nil {
		return &DecryptionError{Op: "write", Path: outPath, Err: err}
	}
	return nil
}
