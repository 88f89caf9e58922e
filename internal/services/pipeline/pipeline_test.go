package pipeline

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coffre/internal/audit"
	"coffre/internal/models"
	"coffre/internal/services/filecrypto"
	"coffre/internal/services/filestore"
	"coffre/internal/services/ledger"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocs(docs ...*models.Document) *memDocs {
	m := &memDocs{docs: map[string]*models.Document{}}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memDocs) Get(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *memDocs) ApplyCrypto(_ context.Context, id string, v models.Variant, patch CryptoPatch) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	at := patch.At
	if v == models.VariantTranslated {
		d.URLTraduitChiffre = &patch.CipherURL
		d.EncryptionKeyTraduit = &patch.KeyHex
		d.EncryptionIVTraduit = &patch.IVHex
		d.BlockchainHashTraduit = &patch.Hash
		d.EncryptedByTraduit = &patch.ActorID
		d.EncryptedAtTraduit = &at
	} else {
		d.URLChiffre = &patch.CipherURL
		d.EncryptionKey = &patch.KeyHex
		d.EncryptionIV = &patch.IVHex
		d.BlockchainHash = &patch.Hash
		d.EncryptedBy = &patch.ActorID
		d.EncryptedAt = &at
	}
	copied := *d
	return &copied, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Action
	}
	return out
}

type fixture struct {
	pipe    *Pipeline
	docs    *memDocs
	store   *filestore.Store
	chain   *ledger.Service
	emitter *recordingEmitter
	server  *httptest.Server
	origin  []byte
}

// newFixture runs a test server that plays both collaborator roles: it
// serves the original plaintext at /original.pdf and the stored files under
// /uploads/, which is also the filestore's public base.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := filepath.Join(t.TempDir(), "uploads")

	origin := make([]byte, 50*1024)
	_, err := rand.Read(origin)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/original.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(origin)
	})
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(root))))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	store := filestore.New(root, filepath.Join(root, "tmp"), server.URL)
	chain, err := ledger.Open(context.Background(), ledger.NewMemoryStore(), zap.NewNop().Sugar())
	require.NoError(t, err)
	unit, err := filecrypto.New("aes")
	require.NoError(t, err)

	docs := newMemDocs(&models.Document{
		ID:          "doc-1",
		RequestID:   "req-1",
		Label:       "contrat",
		URLOriginal: server.URL + "/original.pdf",
	})
	emitter := &recordingEmitter{}
	pipe := New(docs, RecordKeyProvider{}, unit, store, chain, emitter, &HTTPFetcher{}, zap.NewNop().Sugar())
	return &fixture{pipe: pipe, docs: docs, store: store, chain: chain, emitter: emitter, server: server, origin: origin}
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.pipe.EncryptAndPersist(ctx, "doc-1", f.server.URL+"/original.pdf", "user-1", models.VariantOriginal)
	require.NoError(t, err)

	require.NotNil(t, doc.URLChiffre)
	assert.NotEqual(t, doc.URLOriginal, *doc.URLChiffre)
	require.NotNil(t, doc.EncryptionKey, "ciphertext without key is an invalid state")
	require.NotNil(t, doc.EncryptionIV)
	require.NotNil(t, doc.BlockchainHash)
	assert.Len(t, *doc.BlockchainHash, 64)
	require.NotNil(t, doc.EncryptedBy)
	assert.Equal(t, "user-1", *doc.EncryptedBy)
	require.NotNil(t, doc.EncryptedAt)

	dec, err := f.pipe.DecryptedDocument(ctx, "doc-1", "user-1", models.VariantOriginal)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(dec.FilePath) })

	plaintext, err := os.ReadFile(dec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, f.origin, plaintext, "round trip must be byte-identical")

	require.NoError(t, f.chain.Flush(ctx))
	history, err := f.chain.DocumentHistory(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ledger.ActionEncrypt, history[0].Transaction.Action)
	assert.Equal(t, ledger.ActionDecrypt, history[1].Transaction.Action)

	assert.Contains(t, f.emitter.actions(), "document.encrypt")
}

func TestTranslatedVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.pipe.EncryptAndPersist(ctx, "doc-1", f.server.URL+"/original.pdf", "user-2", models.VariantTranslated)
	require.NoError(t, err)
	require.NotNil(t, doc.URLTraduitChiffre)
	require.NotNil(t, doc.EncryptionKeyTraduit)
	assert.Nil(t, doc.URLChiffre, "the original variant stays untouched")
}

func TestEncryptUnreachableURLLeavesDocumentClean(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipe.EncryptAndPersist(ctx, "doc-1", f.server.URL+"/missing.pdf", "user-1", models.VariantOriginal)
	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "download", perr.Step)

	doc, err := f.docs.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, doc.URLChiffre)
	assert.Nil(t, doc.EncryptionKey)
	assert.Nil(t, doc.BlockchainHash)

	// nothing may have landed in the encrypted store
	encRoot := filepath.Join(f.store.Root, string(filestore.KindEncrypted))
	entries, statErr := os.ReadDir(encRoot)
	if statErr == nil {
		assert.Empty(t, entries)
	}
}

func TestDecryptIntegrityViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.pipe.EncryptAndPersist(ctx, "doc-1", f.server.URL+"/original.pdf", "user-1", models.VariantOriginal)
	require.NoError(t, err)

	// corrupt the stored ciphertext out-of-band
	rel, err := f.store.RelativeFromURL(*doc.URLChiffre)
	require.NoError(t, err)
	local, err := f.store.LocalPath(rel)
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(local, data, 0o600))

	_, err = f.pipe.DecryptedDocument(ctx, "doc-1", "user-1", models.VariantOriginal)
	var iverr *IntegrityViolationError
	require.True(t, errors.As(err, &iverr))
	assert.Equal(t, "doc-1", iverr.DocumentID)
	assert.Contains(t, f.emitter.actions(), "document.integrity_violation")
}

func TestDocumentLocksReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.pipe.EncryptAndPersist(ctx, "doc-1", f.server.URL+"/original.pdf", "user-1", models.VariantOriginal)
		}()
	}
	wg.Wait()

	dec, err := f.pipe.DecryptedDocument(ctx, "doc-1", "user-1", models.VariantOriginal)
	require.NoError(t, err)
	require.NoError(t, os.Remove(dec.FilePath))

	f.pipe.mu.Lock()
	held := len(f.pipe.locks)
	f.pipe.mu.Unlock()
	assert.Zero(t, held, "per-document locks must be dropped once idle")
}

func TestDecryptUnencryptedDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipe.DecryptedDocument(context.Background(), "doc-1", "user-1", models.VariantOriginal)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestDecryptMissingDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipe.DecryptedDocument(context.Background(), "doc-nope", "user-1", models.VariantOriginal)
	assert.ErrorIs(t, err, ErrNotFound)
}
