// Package pipeline sequences the document encryption flow (fetch the
// original, encrypt, store the ciphertext, persist the record, anchor a
// ledger event, emit an audit entry) and the inverse flow with integrity
// verification. It is the only code allowed to mutate a document's crypto
// columns.
package pipeline

import (
	"context"
	"os"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"

	"coffre/internal/audit"
	"coffre/internal/models"
	"coffre/internal/services/filecrypto"
	"coffre/internal/services/filestore"
	"coffre/internal/services/ledger"
)

// CryptoPatch is the single record update that makes an encryption durable.
type CryptoPatch struct {
	CipherURL string
	KeyHex    string
	IVHex     string
	Hash      string
	ActorID   string
	At        time.Time
}

// Documents is the narrow persistence surface the pipeline needs from the
// surrounding CRUD layer.
type Documents interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	ApplyCrypto(ctx context.Context, id string, v models.Variant, patch CryptoPatch) (*models.Document, error)
}

// Decrypted is a verified plaintext handed back to the serving route, which
// must delete FilePath once the response is written.
type Decrypted struct {
	FilePath string
	Document *models.Document
}

type Pipeline struct {
	docs  Documents
	keys  KeyProvider
	unit  *filecrypto.Unit
	files *filestore.Store
	chain *ledger.Service
	audit audit.Emitter
	fetch Fetcher
	lg    *zap.SugaredLogger

	mu    sync.Mutex
	locks map[string]*docLock
}

// docLock serializes pipeline runs on one document. refs counts holders and
// waiters so the entry can be dropped once nobody needs it.
type docLock struct {
	mu   sync.Mutex
	refs int
}

func New(docs Documents, keys KeyProvider, unit *filecrypto.Unit, files *filestore.Store, chain *ledger.Service, emitter audit.Emitter, fetch Fetcher, lg *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		docs:  docs,
		keys:  keys,
		unit:  unit,
		files: files,
		chain: chain,
		audit: emitter,
		fetch: fetch,
		lg:    lg,
		locks: map[string]*docLock{},
	}
}

// acquire takes the per-document mutex so two pipeline runs cannot race on
// the same record update.
func (p *Pipeline) acquire(documentID string) *docLock {
	p.mu.Lock()
	l, ok := p.locks[documentID]
	if !ok {
		l = &docLock{}
		p.locks[documentID] = l
	}
	l.refs++
	p.mu.Unlock()
	l.mu.Lock()
	return l
}

// release unlocks and removes the map entry once the last holder is gone,
// keeping the lock map bounded by in-flight documents.
func (p *Pipeline) release(documentID string, l *docLock) {
	l.mu.Unlock()
	p.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, documentID)
	}
	p.mu.Unlock()
}

// EncryptAndPersist downloads the variant's plaintext from originalURL,
// encrypts it and persists the result. Steps through the record update are
// primary: any failure aborts and leaves the document unencrypted. The
// ledger and audit steps are best-effort.
func (p *Pipeline) EncryptAndPersist(ctx context.Context, documentID, originalURL, actorID string, v models.Variant) (*models.Document, error) {
	l := p.acquire(documentID)
	defer p.release(documentID, l)

	fail := func(step string, err error) (*models.Document, error) {
		return nil, &PipelineError{Step: step, DocumentID: documentID, Err: err}
	}

	plaintext, err := p.fetch.Fetch(ctx, originalURL)
	if err != nil {
		return fail("download", err)
	}
	ext := path.Ext(originalURL)
	plainPath, err := p.files.TempPath(ext)
	if err != nil {
		return fail("download", err)
	}
	defer os.Remove(plainPath)
	if err := os.WriteFile(plainPath, plaintext, 0o600); err != nil {
		return fail("download", err)
	}

	material, err := p.keys.Generate(ctx)
	if err != nil {
		return fail("keygen", err)
	}

	res, err := p.unit.EncryptFile(plainPath, material.KeyHex, material.IVHex)
	if err != nil {
		return fail("encrypt", err)
	}
	defer os.Remove(res.EncryptedPath)

	stored, err := p.files.Save(res.EncryptedPath, filestore.KindEncrypted, path.Base(originalURL)+".enc")
	if err != nil {
		return fail("store", err)
	}

	now := time.Now().UTC()
	doc, err := p.docs.ApplyCrypto(ctx, documentID, v, CryptoPatch{
		CipherURL: stored.URL,
		KeyHex:    material.KeyHex,
		IVHex:     material.IVHex,
		Hash:      res.Hash,
		ActorID:   actorID,
		At:        now,
	})
	if err != nil {
		return fail("persist", err)
	}

	p.anchor(ctx, ledger.Transaction{
		DocumentID: documentID,
		Hash:       res.Hash,
		Timestamp:  now,
		Action:     ledger.ActionEncrypt,
		UserID:     actorID,
	})
	p.audit.Emit(ctx, audit.Event{
		UserID:     actorID,
		Action:     "document.encrypt",
		Resource:   "document",
		ResourceID: documentID,
		Details:    map[string]any{"variant": string(v), "hash": res.Hash},
	})
	return doc, nil
}

// DecryptedDocument downloads the variant's ciphertext, verifies it against
// the anchored hash and decrypts it to a scoped temp file. A hash mismatch
// denies access with IntegrityViolationError.
//
// The hash is verified over the ciphertext, the same byte population it was
// computed over at encryption time. (The system this replaces hashed the
// decrypted plaintext here and compared it against the ciphertext hash,
// which could never match.)
func (p *Pipeline) DecryptedDocument(ctx context.Context, documentID, actorID string, v models.Variant) (*Decrypted, error) {
	l := p.acquire(documentID)
	defer p.release(documentID, l)

	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	cipherURL := doc.CipherURL(v)
	_, _, storedHash := doc.KeyMaterial(v)
	if cipherURL == nil || storedHash == nil {
		return nil, ErrInvalidState
	}
	material, err := p.keys.Retrieve(ctx, doc, v)
	if err != nil {
		return nil, err
	}

	ciphertext, err := p.fetch.Fetch(ctx, *cipherURL)
	if err != nil {
		return nil, &PipelineError{Step: "download", DocumentID: documentID, Err: err}
	}

	computed := filecrypto.CalculateHash(ciphertext)
	if computed != *storedHash {
		p.lg.Errorw("document integrity violation",
			"document_id", documentID, "variant", v,
			"stored_hash", *storedHash, "computed_hash", computed)
		p.audit.Emit(ctx, audit.Event{
			UserID:     actorID,
			Action:     "document.integrity_violation",
			Resource:   "document",
			ResourceID: documentID,
			Details:    map[string]any{"variant": string(v), "stored": *storedHash, "computed": computed},
		})
		return nil, &IntegrityViolationError{DocumentID: documentID, StoredHash: *storedHash, ComputedHash: computed}
	}

	encPath, err := p.files.TempPath(".enc")
	if err != nil {
		return nil, &PipelineError{Step: "download", DocumentID: documentID, Err: err}
	}
	defer os.Remove(encPath)
	if err := os.WriteFile(encPath, ciphertext, 0o600); err != nil {
		return nil, &PipelineError{Step: "download", DocumentID: documentID, Err: err}
	}

	outPath, err := p.files.TempPath(path.Ext(doc.SourceURL(v)))
	if err != nil {
		return nil, &PipelineError{Step: "decrypt", DocumentID: documentID, Err: err}
	}
	if err := p.unit.DecryptFile(encPath, material.KeyHex, material.IVHex, outPath); err != nil {
		return nil, err
	}

	p.anchor(ctx, ledger.Transaction{
		DocumentID: documentID,
		Hash:       computed,
		Timestamp:  time.Now().UTC(),
		Action:     ledger.ActionDecrypt,
		UserID:     actorID,
	})
	return &Decrypted{FilePath: outPath, Document: doc}, nil
}

// Verify re-downloads the variant's ciphertext and checks it against the
// anchored hash without decrypting anything. The outcome is recorded as a
// verify transaction and does not change stored state.
func (p *Pipeline) Verify(ctx context.Context, documentID, actorID string, v models.Variant) (bool, error) {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return false, err
	}
	cipherURL := doc.CipherURL(v)
	_, _, storedHash := doc.KeyMaterial(v)
	if cipherURL == nil || storedHash == nil {
		return false, ErrInvalidState
	}
	ciphertext, err := p.fetch.Fetch(ctx, *cipherURL)
	if err != nil {
		return false, &PipelineError{Step: "download", DocumentID: documentID, Err: err}
	}
	computed := filecrypto.CalculateHash(ciphertext)
	match := computed == *storedHash
	if !match {
		p.lg.Errorw("document integrity violation",
			"document_id", documentID, "variant", v,
			"stored_hash", *storedHash, "computed_hash", computed)
		p.audit.Emit(ctx, audit.Event{
			UserID:     actorID,
			Action:     "document.integrity_violation",
			Resource:   "document",
			ResourceID: documentID,
			Details:    map[string]any{"variant": string(v), "stored": *storedHash, "computed": computed},
		})
	}
	p.anchor(ctx, ledger.Transaction{
		DocumentID: documentID,
		Hash:       computed,
		Timestamp:  time.Now().UTC(),
		Action:     ledger.ActionVerify,
		UserID:     actorID,
	})
	return match, nil
}

// anchor appends a ledger transaction, best-effort: tamper evidence must
// never block a legitimate document operation.
func (p *Pipeline) anchor(ctx context.Context, tx ledger.Transaction) {
	if err := p.chain.Add(ctx, tx); err != nil {
		p.lg.Warnw("ledger append failed",
			"document_id", tx.DocumentID, "action", tx.Action, "error", err)
	}
}
