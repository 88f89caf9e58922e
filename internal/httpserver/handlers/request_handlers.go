package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffre/internal/auth"
	"coffre/internal/models"
)

func CreateDocumentRequest(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrganizationID string `json:"organization_id"`
			Subject        string `json:"subject"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.OrganizationID == "" || strings.TrimSpace(req.Subject) == "" {
			http.Error(w, "organization_id and subject required", http.StatusBadRequest)
			return
		}
		var org models.Organization
		if err := db.First(&org, "id = ?", req.OrganizationID).Error; err != nil {
			http.Error(w, "organization not found", http.StatusNotFound)
			return
		}
		dr := models.DocumentRequest{
			OrganizationID: org.ID,
			RequestedBy:    auth.Subject(r.Context()),
			Subject:        strings.TrimSpace(req.Subject),
			Status:         "open",
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := db.Create(&dr).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, dr)
	}
}

func ListDocumentRequests(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqs []models.DocumentRequest
		q := db.Order("created_at desc")
		if org := r.URL.Query().Get("organization_id"); org != "" {
			q = q.Where("organization_id = ?", org)
		}
		if status := r.URL.Query().Get("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		_ = q.Find(&reqs).Error
		respondJSON(w, reqs)
	}
}

func GetDocumentRequest(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var dr models.DocumentRequest
		if err := db.First(&dr, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		var docs []models.Document
		_ = db.Where("request_id = ?", id).Order("created_at asc").Find(&docs).Error
		respondJSON(w, map[string]any{"request": dr, "documents": docs})
	}
}

func CloseDocumentRequest(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var dr models.DocumentRequest
		if err := db.First(&dr, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		dr.Status = "closed"
		dr.UpdatedAt = time.Now()
		if err := db.Save(&dr).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"closed": true})
	}
}
