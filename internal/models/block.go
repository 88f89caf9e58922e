package models

import "time"

// Block is one persisted row of the hash chain. Rows are append-only: once
// written they are never updated or deleted.
type Block struct {
	Index        int64     `gorm:"column:block_index;primaryKey;autoIncrement:false" json:"index"`
	Timestamp    time.Time `gorm:"not null" json:"timestamp"`
	Transactions JSONB     `gorm:"type:jsonb;not null;default:'[]'::jsonb" json:"transactions"`
	PreviousHash string    `gorm:"not null" json:"previous_hash"`
	Hash         string    `gorm:"uniqueIndex;not null" json:"hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Block) TableName() string { return "blockchain" }
