package models

import "time"

// Variant selects which set of crypto columns on a Document an operation
// targets: the uploaded original or its translated counterpart. Both carry
// the same invariant independently.
type Variant string

const (
	VariantOriginal   Variant = "original"
	VariantTranslated Variant = "translated"
)

// Document is one uploaded file tied to a document request. The crypto
// columns (url_chiffre, encryption_key, encryption_iv, blockchain_hash and
// their *_traduit twins) are mutated only through the pipeline: whenever
// url_chiffre is set, key, iv and hash must be set too.
type Document struct {
	ID        string `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RequestID string `gorm:"type:uuid;index;not null" json:"request_id"`
	Label     string `gorm:"not null" json:"label"`
	MimeType  string `gorm:"not null;default:application/pdf" json:"mime_type"`

	URLOriginal    string     `gorm:"column:url_original;not null" json:"url_original"`
	URLChiffre     *string    `gorm:"column:url_chiffre" json:"url_chiffre,omitempty"`
	EncryptionKey  *string    `json:"-"`
	EncryptionIV   *string    `gorm:"column:encryption_iv" json:"-"`
	BlockchainHash *string    `json:"blockchain_hash,omitempty"`
	EncryptedBy    *string    `gorm:"type:uuid" json:"encrypted_by,omitempty"`
	EncryptedAt    *time.Time `json:"encrypted_at,omitempty"`

	URLTraduit            *string    `gorm:"column:url_traduit" json:"url_traduit,omitempty"`
	URLTraduitChiffre     *string    `gorm:"column:url_traduit_chiffre" json:"url_traduit_chiffre,omitempty"`
	EncryptionKeyTraduit  *string    `json:"-"`
	EncryptionIVTraduit   *string    `gorm:"column:encryption_iv_traduit" json:"-"`
	BlockchainHashTraduit *string    `json:"blockchain_hash_traduit,omitempty"`
	EncryptedByTraduit    *string    `gorm:"type:uuid" json:"encrypted_by_traduit,omitempty"`
	EncryptedAtTraduit    *time.Time `json:"encrypted_at_traduit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceURL returns the plaintext URL for the given variant, empty when the
// variant has never been uploaded.
func (d *Document) SourceURL(v Variant) string {
	if v == VariantTranslated {
		if d.URLTraduit == nil {
			return ""
		}
		return *d.URLTraduit
	}
	return d.URLOriginal
}

// CipherURL returns the ciphertext URL for the given variant, nil when the
// variant is still unencrypted.
func (d *Document) CipherURL(v Variant) *string {
	if v == VariantTranslated {
		return d.URLTraduitChiffre
	}
	return d.URLChiffre
}

// KeyMaterial returns key, iv and stored ciphertext hash for the variant.
func (d *Document) KeyMaterial(v Variant) (key, iv, hash *string) {
	if v == VariantTranslated {
		return d.EncryptionKeyTraduit, d.EncryptionIVTraduit, d.BlockchainHashTraduit
	}
	return d.EncryptionKey, d.EncryptionIV, d.BlockchainHash
}
