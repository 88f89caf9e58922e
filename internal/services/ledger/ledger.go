// Package ledger maintains the append-only hash chain that anchors document
// lifecycle events. It is tamper evidence, not a consensus system: one
// writer, local state, durable rows in the blockchain table.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action is the lifecycle event a transaction records.
type Action string

const (
	ActionEncrypt Action = "encrypt"
	ActionDecrypt Action = "decrypt"
	ActionVerify  Action = "verify"
)

// Transaction is one buffered lifecycle event, batched into blocks.
type Transaction struct {
	DocumentID string    `json:"document_id"`
	Hash       string    `json:"hash"`
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	UserID     string    `json:"user_id"`
}

// Block is one link of the chain.
type Block struct {
	Index        int64         `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Hash         string        `json:"hash"`
}

// Event is one entry of a per-document history.
type Event struct {
	BlockIndex  int64       `json:"block_index"`
	BlockHash   string      `json:"block_hash"`
	Timestamp   time.Time   `json:"timestamp"`
	Transaction Transaction `json:"transaction"`
}

// Store persists blocks. Implementations must return blocks ordered by
// index and never mutate rows once appended.
type Store interface {
	Append(ctx context.Context, b Block) error
	All(ctx context.Context) ([]Block, error)
	Last(ctx context.Context) (*Block, error)
}

const (
	genesisPreviousHash = "0"

	// DefaultMaxPending is the buffered-event count that forces a block.
	DefaultMaxPending = 10
	// DefaultMaxAge is how long the oldest buffered event may wait before a
	// block is forced.
	DefaultMaxAge = 5 * time.Minute
)

// Service owns the in-memory chain tip and the pending-transaction buffer.
// Construct one per process with Open and share it by reference; all methods
// are safe for concurrent use.
type Service struct {
	store      Store
	lg         *zap.SugaredLogger
	maxPending int
	maxAge     time.Duration

	mu      sync.Mutex
	tip     Block
	length  int64
	pending []Transaction
}

// Open loads the persisted tip, creating the genesis block when the store is
// empty.
func Open(ctx context.Context, store Store, lg *zap.SugaredLogger) (*Service, error) {
	s := &Service{
		store:      store,
		lg:         lg,
		maxPending: DefaultMaxPending,
		maxAge:     DefaultMaxAge,
	}
	last, err := store.Last(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		genesis := newBlock(0, nil, genesisPreviousHash)
		if err := store.Append(ctx, genesis); err != nil {
			return nil, err
		}
		s.tip = genesis
		s.length = 1
		return s, nil
	}
	s.tip = *last
	s.length = last.Index + 1
	return s, nil
}

// Add buffers one transaction and creates a block once the buffer holds
// DefaultMaxPending events or the oldest buffered event is older than
// DefaultMaxAge, whichever comes first.
func (s *Service) Add(ctx context.Context, tx Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	s.pending = append(s.pending, tx)
	if len(s.pending) >= s.maxPending || time.Since(s.pending[0].Timestamp) >= s.maxAge {
		return s.flushLocked(ctx)
	}
	return nil
}

// Flush forces any buffered transactions into a block. Used by the periodic
// age check and at shutdown.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	return s.flushLocked(ctx)
}

// FlushAged creates a block only when the oldest buffered transaction has
// exceeded the age threshold.
func (s *Service) FlushAged(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 || time.Since(s.pending[0].Timestamp) < s.maxAge {
		return nil
	}
	return s.flushLocked(ctx)
}

func (s *Service) flushLocked(ctx context.Context) error {
	block := newBlock(s.length, s.pending, s.tip.Hash)
	if err := s.store.Append(ctx, block); err != nil {
		// Keep the buffer: the next flush retries with a fresh index.
		return err
	}
	s.tip = block
	s.length++
	s.pending = nil
	s.lg.Debugw("block sealed", "index", block.Index, "transactions", len(block.Transactions), "hash", block.Hash)
	return nil
}

// Tip returns the last appended block.
func (s *Service) Tip() Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tip
}

// PendingCount returns the number of buffered transactions.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Valid re-reads every persisted block and checks both hash recomputation
// and predecessor linkage. Meant for periodic audits, not the request path.
func (s *Service) Valid(ctx context.Context) (bool, error) {
	blocks, err := s.store.All(ctx)
	if err != nil {
		return false, err
	}
	for i, b := range blocks {
		if b.Index != int64(i) {
			return false, nil
		}
		if computeHash(b.Index, b.Timestamp, b.Transactions, b.PreviousHash) != b.Hash {
			return false, nil
		}
		if i == 0 {
			if b.PreviousHash != genesisPreviousHash {
				return false, nil
			}
			continue
		}
		if b.PreviousHash != blocks[i-1].Hash {
			return false, nil
		}
	}
	return true, nil
}

// DocumentHistory returns every recorded event for one document, in chain
// order.
func (s *Service) DocumentHistory(ctx context.Context, documentID string) ([]Event, error) {
	blocks, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	var events []Event
	for _, b := range blocks {
		for _, tx := range b.Transactions {
			if tx.DocumentID == documentID {
				events = append(events, Event{
					BlockIndex:  b.Index,
					BlockHash:   b.Hash,
					Timestamp:   tx.Timestamp,
					Transaction: tx,
				})
			}
		}
	}
	return events, nil
}

// Close flushes a non-empty pending buffer before shutdown.
func (s *Service) Close(ctx context.Context) error {
	return s.Flush(ctx)
}

// newBlock builds and seals a block. Timestamps are truncated to
// microseconds so a database round trip reproduces the hashed value exactly.
func newBlock(index int64, txs []Transaction, previousHash string) Block {
	b := Block{
		Index:        index,
		Timestamp:    time.Now().UTC().Truncate(time.Microsecond),
		Transactions: txs,
		PreviousHash: previousHash,
	}
	b.Hash = computeHash(b.Index, b.Timestamp, b.Transactions, b.PreviousHash)
	return b
}

func computeHash(index int64, ts time.Time, txs []Transaction, previousHash string) string {
	payload, _ := json.Marshal(txs)
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(index, 10)))
	h.Write([]byte(strconv.FormatInt(ts.UTC().UnixMicro(), 10)))
	h.Write(payload)
	h.Write([]byte(previousHash))
	return hex.EncodeToString(h.Sum(nil))
}
