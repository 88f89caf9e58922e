package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc, err := Open(context.Background(), store, zap.NewNop().Sugar())
	require.NoError(t, err)
	return svc, store
}

func tx(docID string, action Action) Transaction {
	return Transaction{
		DocumentID: docID,
		Hash:       "deadbeef",
		Timestamp:  time.Now().UTC(),
		Action:     action,
		UserID:     "user-1",
	}
}

func TestOpenCreatesGenesis(t *testing.T) {
	svc, store := newTestService(t)
	tip := svc.Tip()
	assert.Equal(t, int64(0), tip.Index)
	assert.Equal(t, "0", tip.PreviousHash)
	assert.Len(t, tip.Hash, 64)

	blocks, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, blocks, 1)
}

func TestOpenResumesFromPersistedTip(t *testing.T) {
	svc, store := newTestService(t)
	for i := 0; i < DefaultMaxPending; i++ {
		require.NoError(t, svc.Add(context.Background(), tx("doc-1", ActionEncrypt)))
	}
	tip := svc.Tip()
	require.Equal(t, int64(1), tip.Index)

	resumed, err := Open(context.Background(), store, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Equal(t, tip.Hash, resumed.Tip().Hash)
}

func TestBlockBatchingThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < DefaultMaxPending-1; i++ {
		require.NoError(t, svc.Add(ctx, tx(fmt.Sprintf("doc-%d", i), ActionEncrypt)))
	}
	assert.Equal(t, int64(0), svc.Tip().Index, "nine events stay buffered")
	assert.Equal(t, DefaultMaxPending-1, svc.PendingCount())

	require.NoError(t, svc.Add(ctx, tx("doc-last", ActionEncrypt)))
	tip := svc.Tip()
	assert.Equal(t, int64(1), tip.Index, "tenth event seals exactly one block")
	assert.Len(t, tip.Transactions, DefaultMaxPending)
	assert.Zero(t, svc.PendingCount())
}

func TestAgeTriggersFlush(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	stale := tx("doc-old", ActionVerify)
	stale.Timestamp = time.Now().UTC().Add(-DefaultMaxAge - time.Second)
	require.NoError(t, svc.Add(ctx, stale))
	assert.Equal(t, int64(1), svc.Tip().Index, "an over-age event flushes on the next add")
}

func TestFlushAged(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, tx("doc-1", ActionEncrypt)))
	require.NoError(t, svc.FlushAged(ctx))
	assert.Equal(t, int64(0), svc.Tip().Index, "fresh events stay buffered")

	require.NoError(t, svc.Flush(ctx))
	assert.Equal(t, int64(1), svc.Tip().Index)
}

func TestChainValidAndTamperDetection(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3*DefaultMaxPending; i++ {
		require.NoError(t, svc.Add(ctx, tx(fmt.Sprintf("doc-%d", i%4), ActionEncrypt)))
	}
	ok, err := svc.Valid(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	store.Tamper(2, func(b *Block) {
		b.Transactions[0].Hash = "feedface"
	})
	ok, err = svc.Valid(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "edited transactions must invalidate the chain")
}

func TestBrokenLinkage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 2*DefaultMaxPending; i++ {
		require.NoError(t, svc.Add(ctx, tx("doc-1", ActionEncrypt)))
	}

	store.Tamper(1, func(b *Block) {
		// reseal block 1 so its own hash is consistent but block 2's
		// previous_hash no longer matches
		b.Transactions[0].UserID = "intruder"
		b.Hash = computeHash(b.Index, b.Timestamp, b.Transactions, b.PreviousHash)
	})
	ok, err := svc.Valid(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, tx("doc-a", ActionEncrypt)))
	require.NoError(t, svc.Add(ctx, tx("doc-b", ActionEncrypt)))
	require.NoError(t, svc.Add(ctx, tx("doc-a", ActionDecrypt)))
	require.NoError(t, svc.Flush(ctx))

	events, err := svc.DocumentHistory(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionEncrypt, events[0].Transaction.Action)
	assert.Equal(t, ActionDecrypt, events[1].Transaction.Action)
	assert.Equal(t, int64(1), events[0].BlockIndex)

	none, err := svc.DocumentHistory(ctx, "doc-unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCloseFlushesPending(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, tx("doc-1", ActionEncrypt)))
	require.NoError(t, svc.Close(ctx))

	blocks, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Len(t, blocks[1].Transactions, 1)
}
