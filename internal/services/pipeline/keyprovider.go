package pipeline

import (
	"context"

	"coffre/internal/models"
	"coffre/internal/services/filecrypto"
)

// KeyMaterial is one document variant's symmetric key and IV, hex-encoded.
type KeyMaterial struct {
	KeyHex string
	IVHex  string
}

// KeyProvider abstracts where key material lives. The shipped
// implementation keeps keys next to the ciphertext reference in the document
// row (an inherited weakness); a KMS-backed provider can replace it without
// touching the pipeline or the schema.
type KeyProvider interface {
	Generate(ctx context.Context) (KeyMaterial, error)
	Retrieve(ctx context.Context, doc *models.Document, v models.Variant) (KeyMaterial, error)
}

// RecordKeyProvider generates fresh material locally and reads it back from
// the document record.
type RecordKeyProvider struct{}

func (RecordKeyProvider) Generate(_ context.Context) (KeyMaterial, error) {
	key, err := filecrypto.GenerateKey()
	if err != nil {
		return KeyMaterial{}, err
	}
	iv, err := filecrypto.GenerateIV()
	if err != nil {
		return KeyMaterial{}, err
	}
	return KeyMaterial{KeyHex: key, IVHex: iv}, nil
}

func (RecordKeyProvider) Retrieve(_ context.Context, doc *models.Document, v models.Variant) (KeyMaterial, error) {
	key, iv, _ := doc.KeyMaterial(v)
	if key == nil || iv == nil {
		return KeyMaterial{}, ErrInvalidState
	}
	return KeyMaterial{KeyHex: *key, IVHex: *iv}, nil
}
