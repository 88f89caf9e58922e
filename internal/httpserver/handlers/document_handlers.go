package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffre/internal/audit"
	"coffre/internal/auth"
	"coffre/internal/models"
	"coffre/internal/services/filestore"
	"coffre/internal/services/ledger"
	"coffre/internal/services/pipeline"
)

func variantFromQuery(r *http.Request) models.Variant {
	if r.URL.Query().Get("variant") == string(models.VariantTranslated) {
		return models.VariantTranslated
	}
	return models.VariantOriginal
}

func uploadMimeType(filename, declared string) string {
	if declared != "" && declared != "application/octet-stream" {
		if t, _, err := mime.ParseMediaType(declared); err == nil {
			return t
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// readUpload extracts and validates the multipart "file" part.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (data []byte, filename, mimeType string, ok bool) {
	// headroom for multipart boundaries; ValidateUpload enforces the real cap
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part required", http.StatusBadRequest)
		return nil, "", "", false
	}
	defer file.Close()
	data, err = io.ReadAll(file)
	if err != nil {
		http.Error(w, "read upload failed", http.StatusBadRequest)
		return nil, "", "", false
	}
	mimeType = uploadMimeType(header.Filename, header.Header.Get("Content-Type"))
	if err := ValidateUpload(data, mimeType, maxBytes); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, "", "", false
	}
	return data, header.Filename, mimeType, true
}

func stageUpload(files *filestore.Store, data []byte, filename string) (filestore.Stored, error) {
	tmp, err := files.TempPath(filepath.Ext(filename))
	if err != nil {
		return filestore.Stored{}, err
	}
	defer os.Remove(tmp)
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return filestore.Stored{}, err
	}
	return files.Save(tmp, filestore.KindDocuments, filename)
}

// UploadDocument receives one file for a document request, stores the
// original and runs the encryption pipeline. Encryption failure degrades
// gracefully: the document stays available unencrypted instead of failing
// the upload.
func UploadDocument(db *gorm.DB, pipe *pipeline.Pipeline, files *filestore.Store, emitter audit.Emitter, maxBytes int64, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "id")
		var dr models.DocumentRequest
		if err := db.First(&dr, "id = ?", requestID).Error; err != nil {
			http.Error(w, "request not found", http.StatusNotFound)
			return
		}

		data, filename, mimeType, ok := readUpload(w, r, maxBytes)
		if !ok {
			return
		}
		stored, err := stageUpload(files, data, filename)
		if err != nil {
			lg.Errorw("store original failed", "request_id", requestID, "error", err)
			http.Error(w, "storage failure", http.StatusInternalServerError)
			return
		}

		label := r.FormValue("label")
		if label == "" {
			label = filename
		}
		doc := models.Document{
			RequestID:   dr.ID,
			Label:       label,
			MimeType:    mimeType,
			URLOriginal: stored.URL,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if err := db.Create(&doc).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		actor := auth.Subject(r.Context())
		emitter.Emit(r.Context(), audit.Event{
			UserID: actor, Action: "document.upload", Resource: "document", ResourceID: doc.ID,
			Details: map[string]any{"request_id": dr.ID, "mime_type": mimeType},
		})

		encrypted, err := pipe.EncryptAndPersist(r.Context(), doc.ID, stored.URL, actor, models.VariantOriginal)
		if err != nil {
			lg.Errorw("encryption failed, document left unencrypted", "document_id", doc.ID, "error", err)
			respondJSONStatus(w, http.StatusCreated, map[string]any{"document": doc, "encrypted": false})
			return
		}
		respondJSONStatus(w, http.StatusCreated, map[string]any{"document": encrypted, "encrypted": true})
	}
}

// UploadTranslation attaches the translated file to an existing document
// and encrypts it under its own key and IV.
func UploadTranslation(db *gorm.DB, pipe *pipeline.Pipeline, files *filestore.Store, emitter audit.Emitter, maxBytes int64, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var doc models.Document
		if err := db.First(&doc, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		data, filename, _, ok := readUpload(w, r, maxBytes)
		if !ok {
			return
		}
		stored, err := stageUpload(files, data, filename)
		if err != nil {
			lg.Errorw("store translation failed", "document_id", id, "error", err)
			http.Error(w, "storage failure", http.StatusInternalServerError)
			return
		}
		if err := db.Model(&doc).Update("url_traduit", stored.URL).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		actor := auth.Subject(r.Context())
		emitter.Emit(r.Context(), audit.Event{
			UserID: actor, Action: "document.upload_translation", Resource: "document", ResourceID: doc.ID,
		})

		encrypted, err := pipe.EncryptAndPersist(r.Context(), doc.ID, stored.URL, actor, models.VariantTranslated)
		if err != nil {
			lg.Errorw("translation encryption failed", "document_id", doc.ID, "error", err)
			respondJSON(w, map[string]any{"document_id": doc.ID, "encrypted": false})
			return
		}
		respondJSON(w, map[string]any{"document": encrypted, "encrypted": true})
	}
}

// DownloadDocument streams the decrypted plaintext. Any integrity mismatch
// denies access with no partial content.
func DownloadDocument(pipe *pipeline.Pipeline, emitter audit.Emitter, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		actor := auth.Subject(r.Context())

		dec, err := pipe.DecryptedDocument(r.Context(), id, actor, variantFromQuery(r))
		if err != nil {
			var iverr *pipeline.IntegrityViolationError
			switch {
			case errors.Is(err, pipeline.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, pipeline.ErrInvalidState):
				http.Error(w, "document is not encrypted", http.StatusConflict)
			case errors.As(err, &iverr):
				http.Error(w, "integrity check failed", http.StatusConflict)
			default:
				lg.Errorw("decryption failed", "document_id", id, "error", err)
				http.Error(w, "decryption failed", http.StatusInternalServerError)
			}
			return
		}
		defer os.Remove(dec.FilePath)

		emitter.Emit(r.Context(), audit.Event{
			UserID: actor, Action: "document.download", Resource: "document", ResourceID: id,
		})
		w.Header().Set("Content-Type", dec.Document.MimeType)
		http.ServeFile(w, r, dec.FilePath)
	}
}

// VerifyDocument recomputes the ciphertext hash against the anchored one.
func VerifyDocument(pipe *pipeline.Pipeline, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		verified, err := pipe.Verify(r.Context(), id, auth.Subject(r.Context()), variantFromQuery(r))
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, pipeline.ErrInvalidState):
				http.Error(w, "document is not encrypted", http.StatusConflict)
			default:
				lg.Errorw("verify failed", "document_id", id, "error", err)
				http.Error(w, "verify failed", http.StatusInternalServerError)
			}
			return
		}
		respondJSON(w, map[string]any{"document_id": id, "verified": verified})
	}
}

// DocumentHistory returns the ledger trail for one document.
func DocumentHistory(db *gorm.DB, chain *ledger.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var doc models.Document
		if err := db.First(&doc, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		events, err := chain.DocumentHistory(r.Context(), id)
		if err != nil {
			lg.Errorw("history read failed", "document_id", id, "error", err)
			http.Error(w, "history unavailable", http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"document_id": id, "events": events})
	}
}

// VerifyChain re-validates the whole persisted chain.
func VerifyChain(chain *ledger.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		valid, err := chain.Valid(r.Context())
		if err != nil {
			lg.Errorw("chain validation failed", "error", err)
			http.Error(w, "validation unavailable", http.StatusInternalServerError)
			return
		}
		if !valid {
			lg.Errorw("hash chain invalid")
		}
		respondJSON(w, map[string]any{"valid": valid})
	}
}

// ServeUpload serves stored files, rejecting any path that escapes the
// upload root or resolves into the temp area. Only regular files are
// served: a directory response would list the non-guessable names.
func ServeUpload(files *filestore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := chi.URLParam(r, "*")
		local, err := files.LocalPath(rel)
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		info, err := os.Stat(local)
		if err != nil || !info.Mode().IsRegular() {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.ServeFile(w, r, local)
	}
}
