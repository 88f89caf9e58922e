package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps blocks in memory. It backs tests and any deployment
// that runs without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	blocks []Block
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, b Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, b)
	return nil
}

func (m *MemoryStore) All(_ context.Context) ([]Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Block, len(m.blocks))
	copy(out, m.blocks)
	return out, nil
}

func (m *MemoryStore) Last(_ context.Context) (*Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.blocks) == 0 {
		return nil, nil
	}
	b := m.blocks[len(m.blocks)-1]
	return &b, nil
}

// Tamper overwrites a stored block out-of-band. Only integrity tests use it.
func (m *MemoryStore) Tamper(index int64, mutate func(*Block)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.blocks {
		if m.blocks[i].Index == index {
			mutate(&m.blocks[i])
			return
		}
	}
}
