package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"coffre/internal/models"
)

// GormStore persists blocks in the blockchain table, one row per block.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (g *GormStore) Append(ctx context.Context, b Block) error {
	row, err := toRow(b)
	if err != nil {
		return err
	}
	return g.db.WithContext(ctx).Create(&row).Error
}

func (g *GormStore) All(ctx context.Context) ([]Block, error) {
	var rows []models.Block
	if err := g.db.WithContext(ctx).Order("block_index asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(rows))
	for _, row := range rows {
		b, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (g *GormStore) Last(ctx context.Context) (*Block, error) {
	var row models.Block
	err := g.db.WithContext(ctx).Order("block_index desc").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b, err := fromRow(row)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func toRow(b Block) (models.Block, error) {
	payload, err := json.Marshal(b.Transactions)
	if err != nil {
		return models.Block{}, fmt.Errorf("marshal transactions: %w", err)
	}
	return models.Block{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: models.JSONB(payload),
		PreviousHash: b.PreviousHash,
		Hash:         b.Hash,
	}, nil
}

func fromRow(row models.Block) (Block, error) {
	var txs []Transaction
	if len(row.Transactions) > 0 {
		if err := json.Unmarshal(row.Transactions, &txs); err != nil {
			return Block{}, fmt.Errorf("unmarshal transactions of block %d: %w", row.Index, err)
		}
	}
	return Block{
		Index:        row.Index,
		Timestamp:    row.Timestamp,
		Transactions: txs,
		PreviousHash: row.PreviousHash,
		Hash:         row.Hash,
	}, nil
}
