package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffre/internal/models"
)

func CreateOrganization(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name    string  `json:"name"`
			Country *string `json:"country,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		country := "FR"
		if req.Country != nil {
			country = strings.ToUpper(strings.TrimSpace(*req.Country))
		}
		if utf8.RuneCountInString(country) != 2 {
			http.Error(w, "country must be a 2-letter code", http.StatusBadRequest)
			return
		}
		o := models.Organization{Name: name, Country: country, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if err := db.Create(&o).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, o)
	}
}

func ListOrganizations(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var orgs []models.Organization
		_ = db.Order("created_at desc").Find(&orgs).Error
		respondJSON(w, orgs)
	}
}

func UpdateOrganization(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Name     *string `json:"name"`
			IsActive *bool   `json:"is_active"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var o models.Organization
		if err := db.First(&o, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if req.Name != nil {
			o.Name = strings.TrimSpace(*req.Name)
		}
		if req.IsActive != nil {
			o.IsActive = *req.IsActive
		}
		o.UpdatedAt = time.Now()
		if err := db.Save(&o).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}

func DeleteOrganization(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := db.Delete(&models.Organization{}, "id = ?", id).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}
