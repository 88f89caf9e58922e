package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"coffre/internal/audit"
	"coffre/internal/auth"
	"coffre/internal/config"
	"coffre/internal/httpserver"
	"coffre/internal/logger"
	"coffre/internal/models"
	"coffre/internal/repository"
	"coffre/internal/services/filecrypto"
	"coffre/internal/services/filestore"
	"coffre/internal/services/ledger"
	"coffre/internal/services/pipeline"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Role{}, &models.User{}, &models.Organization{}, &models.Subscription{},
		&models.Payment{}, &models.DocumentRequest{}, &models.Document{},
		&models.Block{}, &models.AuditLog{}, &models.Session{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaultAdmin(db, lg)

	files := filestore.New(cfg.UploadDir, cfg.TempDir, cfg.BaseURL)
	unit, err := filecrypto.New(cfg.CipherAlgorithm)
	if err != nil {
		lg.Fatalw("cipher setup failed", "algorithm", cfg.CipherAlgorithm, "error", err)
	}

	ctx := context.Background()
	chain, err := ledger.Open(ctx, ledger.NewGormStore(db), lg)
	if err != nil {
		lg.Fatalw("ledger open failed", "error", err)
	}

	var emitter audit.Emitter
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer client.Close()
		emitter = audit.NewAsynqEmitter(client, lg)
	} else {
		emitter = audit.NewDBEmitter(db, lg)
	}

	pipe := pipeline.New(
		repository.NewDocumentRepository(db),
		pipeline.RecordKeyProvider{},
		unit, files, chain, emitter,
		&pipeline.HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Second}},
		lg,
	)

	sched := cron.New()
	_, _ = sched.AddFunc("@every 1m", func() {
		if err := chain.FlushAged(context.Background()); err != nil {
			lg.Warnw("ledger age flush failed", "error", err)
		}
	})
	_, _ = sched.AddFunc("@hourly", func() {
		n, err := files.CleanupTempFiles(cfg.TempMaxAge)
		if err != nil {
			lg.Warnw("temp cleanup failed", "error", err)
			return
		}
		if n > 0 {
			lg.Infow("temp files cleaned", "deleted", n)
		}
	})
	_, _ = sched.AddFunc("@midnight", func() {
		valid, err := chain.Valid(context.Background())
		if err != nil {
			lg.Warnw("chain audit failed", "error", err)
			return
		}
		if !valid {
			lg.Errorw("hash chain invalid, tampering suspected")
			return
		}
		lg.Infow("hash chain audit passed")
	})
	sched.Start()
	defer sched.Stop()

	router := httpserver.NewRouter(httpserver.Deps{
		DB: db, Lg: lg, Cfg: cfg, Pipe: pipe, Files: files, Chain: chain, Audit: emitter,
	})
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: router}

	go func() {
		lg.Infow("listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalw("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := chain.Close(shutdownCtx); err != nil {
		lg.Warnw("ledger flush on shutdown failed", "error", err)
	}
	lg.Infow("stopped")
}

func seedDefaultAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	db.Exec("INSERT INTO roles(name) VALUES ('Administrator') ON CONFLICT DO NOTHING")
	db.Exec("INSERT INTO roles(name) VALUES ('User') ON CONFLICT DO NOTHING")
	var count int64
	db.Model(&models.User{}).Where("LOWER(email)=?", "admin@coffre.local").Count(&count)
	if count > 0 {
		return
	}
	pw := os.Getenv("ADMIN_PASSWORD")
	if pw == "" {
		pw = "changeme"
	}
	hash, _ := auth.HashPassword(pw)
	u := models.User{Email: strings.ToLower("admin@coffre.local"), PasswordHash: hash, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := db.Create(&u).Error; err == nil {
		var adminRole models.Role
		if err := db.First(&adminRole, "name = 'Administrator'").Error; err == nil {
			_ = db.Model(&u).Association("Roles").Append(&adminRole)
		}
	}
	lg.Infow("seeded default admin", "email", "admin@coffre.local")
}
