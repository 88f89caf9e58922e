package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coffre/internal/audit"
	"coffre/internal/auth"
	"coffre/internal/config"
	"coffre/internal/httpserver/handlers"
	"coffre/internal/services/filestore"
	"coffre/internal/services/ledger"
	"coffre/internal/services/pipeline"
)

// Deps carries everything the routes need. Built once in main.
type Deps struct {
	DB    *gorm.DB
	Lg    *zap.SugaredLogger
	Cfg   config.Config
	Pipe  *pipeline.Pipeline
	Files *filestore.Store
	Chain *ledger.Service
	Audit audit.Emitter
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Post("/v1/auth/login", handlers.Login(d.DB, d.Lg))
	r.Get("/uploads/*", handlers.ServeUpload(d.Files))
	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(d.DB))
		protected.Get("/v1/me", handlers.Me(d.DB, d.Lg))
		protected.Post("/v1/auth/logout", handlers.Logout(d.DB))
		protected.Post("/v1/auth/password", handlers.ChangePassword(d.DB, d.Lg))

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole("Administrator"))
			admin.Get("/v1/admin/users", handlers.ListUsers(d.DB, d.Lg))
			admin.Post("/v1/admin/users", handlers.CreateUser(d.DB, d.Lg))
			admin.Patch("/v1/admin/users/{id}", handlers.UpdateUser(d.DB, d.Lg))
			admin.Delete("/v1/admin/users/{id}", handlers.DeleteUser(d.DB, d.Lg))
			admin.Post("/v1/organizations", handlers.CreateOrganization(d.DB, d.Lg))
			admin.Patch("/v1/organizations/{id}", handlers.UpdateOrganization(d.DB, d.Lg))
			admin.Delete("/v1/organizations/{id}", handlers.DeleteOrganization(d.DB, d.Lg))
			admin.Post("/v1/organizations/{id}/subscriptions", handlers.CreateSubscription(d.DB, d.Lg))
			admin.Post("/v1/subscriptions/{id}/cancel", handlers.CancelSubscription(d.DB, d.Lg))
			admin.Post("/v1/subscriptions/{id}/payments", handlers.CreatePayment(d.DB, d.Lg))
			admin.Post("/v1/payments/{id}/settle", handlers.SettlePayment(d.DB, d.Lg))
			admin.Get("/v1/admin/ledger/verify", handlers.VerifyChain(d.Chain, d.Lg))
		})

		protected.Get("/v1/organizations", handlers.ListOrganizations(d.DB, d.Lg))
		protected.Get("/v1/organizations/{id}/subscriptions", handlers.ListSubscriptions(d.DB, d.Lg))
		protected.Get("/v1/subscriptions/{id}/payments", handlers.ListPayments(d.DB, d.Lg))

		protected.Post("/v1/requests", handlers.CreateDocumentRequest(d.DB, d.Lg))
		protected.Get("/v1/requests", handlers.ListDocumentRequests(d.DB, d.Lg))
		protected.Get("/v1/requests/{id}", handlers.GetDocumentRequest(d.DB, d.Lg))
		protected.Post("/v1/requests/{id}/close", handlers.CloseDocumentRequest(d.DB, d.Lg))
		protected.Post("/v1/requests/{id}/documents", handlers.UploadDocument(d.DB, d.Pipe, d.Files, d.Audit, d.Cfg.MaxUploadBytes, d.Lg))

		protected.Post("/v1/documents/{id}/translation", handlers.UploadTranslation(d.DB, d.Pipe, d.Files, d.Audit, d.Cfg.MaxUploadBytes, d.Lg))
		protected.Get("/v1/documents/{id}/file", handlers.DownloadDocument(d.Pipe, d.Audit, d.Lg))
		protected.Get("/v1/documents/{id}/verify", handlers.VerifyDocument(d.Pipe, d.Lg))
		protected.Get("/v1/documents/{id}/history", handlers.DocumentHistory(d.DB, d.Chain, d.Lg))

		protected.Get("/v1/logs", handlers.MyLogs(d.DB, d.Lg))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
