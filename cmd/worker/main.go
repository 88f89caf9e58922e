package main

import (
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"coffre/internal/config"
	"coffre/internal/logger"
	"coffre/internal/models"
	"coffre/internal/worker"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	if cfg.RedisAddr == "" {
		lg.Fatalw("REDIS_ADDR is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{Concurrency: 4},
	)
	lg.Infow("worker starting", "redis", cfg.RedisAddr)
	if err := srv.Run(worker.NewProcessor(db, lg).Handler()); err != nil {
		lg.Fatalw("worker stopped", "error", err)
	}
}
