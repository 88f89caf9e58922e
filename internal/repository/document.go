// Package repository wraps the database access the pipeline needs.
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"coffre/internal/models"
	"coffre/internal/services/pipeline"
)

// DocumentRepository implements pipeline.Documents on gorm.
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ApplyCrypto writes the crypto columns of one variant in a single update.
// This is the durability point of an encryption run.
func (r *DocumentRepository) ApplyCrypto(ctx context.Context, id string, v models.Variant, patch pipeline.CryptoPatch) (*models.Document, error) {
	columns := map[string]any{
		"url_chiffre":     patch.CipherURL,
		"encryption_key":  patch.KeyHex,
		"encryption_iv":   patch.IVHex,
		"blockchain_hash": patch.Hash,
		"encrypted_by":    patch.ActorID,
		"encrypted_at":    patch.At,
	}
	if v == models.VariantTranslated {
		columns = map[string]any{
			"url_traduit_chiffre":     patch.CipherURL,
			"encryption_key_traduit":  patch.KeyHex,
			"encryption_iv_traduit":   patch.IVHex,
			"blockchain_hash_traduit": patch.Hash,
			"encrypted_by_traduit":    patch.ActorID,
			"encrypted_at_traduit":    patch.At,
		}
	}
	res := r.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, pipeline.ErrNotFound
	}
	return r.Get(ctx, id)
}
