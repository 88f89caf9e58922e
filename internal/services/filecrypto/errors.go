package filecrypto

import "fmt"

// EncryptionError wraps any failure while producing ciphertext: I/O on the
// source or destination file, or the cipher construction itself.
type EncryptionError struct {
	Op   string
	Path string
	Err  error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encrypt %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// DecryptionError wraps cipher or I/O failures while recovering plaintext.
// A wrong key/iv surfaces here as a padding failure.
type DecryptionError struct {
	Op   string
	Path string
	Err  error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }
