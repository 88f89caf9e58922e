package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffre/internal/models"
)

func CreateSubscription(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "id")
		var req struct {
			Plan     string     `json:"plan"`
			StartsAt *time.Time `json:"starts_at,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Plan) == "" {
			http.Error(w, "plan required", http.StatusBadRequest)
			return
		}
		var org models.Organization
		if err := db.First(&org, "id = ?", orgID).Error; err != nil {
			http.Error(w, "organization not found", http.StatusNotFound)
			return
		}
		starts := time.Now()
		if req.StartsAt != nil {
			starts = *req.StartsAt
		}
		s := models.Subscription{
			OrganizationID: org.ID,
			Plan:           strings.TrimSpace(req.Plan),
			Status:         "active",
			StartsAt:       starts,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := db.Create(&s).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, s)
	}
}

func ListSubscriptions(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID := chi.URLParam(r, "id")
		var subs []models.Subscription
		_ = db.Where("organization_id = ?", orgID).Order("created_at desc").Find(&subs).Error
		respondJSON(w, subs)
	}
}

func CancelSubscription(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var s models.Subscription
		if err := db.First(&s, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		now := time.Now()
		s.Status = "cancelled"
		s.EndsAt = &now
		s.UpdatedAt = now
		if err := db.Save(&s).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"cancelled": true})
	}
}

func CreatePayment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subID := chi.URLParam(r, "id")
		var req struct {
			Provider    string  `json:"provider"`
			ProviderRef *string `json:"provider_ref,omitempty"`
			AmountCents int64   `json:"amount_cents"`
			Currency    *string `json:"currency,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.AmountCents <= 0 {
			http.Error(w, "amount_cents must be positive", http.StatusBadRequest)
			return
		}
		switch strings.ToLower(req.Provider) {
		case "stripe", "paypal":
		default:
			http.Error(w, "provider must be stripe or paypal", http.StatusBadRequest)
			return
		}
		var s models.Subscription
		if err := db.First(&s, "id = ?", subID).Error; err != nil {
			http.Error(w, "subscription not found", http.StatusNotFound)
			return
		}
		currency := "EUR"
		if req.Currency != nil {
			currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
		}
		p := models.Payment{
			SubscriptionID: s.ID,
			Provider:       strings.ToLower(req.Provider),
			ProviderRef:    req.ProviderRef,
			AmountCents:    req.AmountCents,
			Currency:       currency,
			Status:         "pending",
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := db.Create(&p).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, p)
	}
}

func ListPayments(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subID := chi.URLParam(r, "id")
		var payments []models.Payment
		_ = db.Where("subscription_id = ?", subID).Order("created_at desc").Find(&payments).Error
		respondJSON(w, payments)
	}
}

// SettlePayment records the outcome reported by the payment provider's
// webhook relay.
func SettlePayment(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Status      string  `json:"status"`
			ProviderRef *string `json:"provider_ref,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Status {
		case "succeeded", "failed", "refunded":
		default:
			http.Error(w, "status must be succeeded, failed or refunded", http.StatusBadRequest)
			return
		}
		var p models.Payment
		if err := db.First(&p, "id = ?", id).Error; err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		p.Status = req.Status
		if req.ProviderRef != nil {
			p.ProviderRef = req.ProviderRef
		}
		p.UpdatedAt = time.Now()
		if err := db.Save(&p).Error; err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"updated": true})
	}
}
