// Package config reads runtime configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL     string
	HTTPPort        string
	JWTSecret       string
	BaseURL         string
	UploadDir       string
	TempDir         string
	RedisAddr       string
	CipherAlgorithm string
	MaxUploadBytes  int64
	TempMaxAge      time.Duration
}

const (
	defaultHTTPPort       = "8080"
	defaultBaseURL        = "http://localhost:8080"
	defaultUploadDir      = "uploads"
	defaultCipher         = "aes"
	defaultMaxUploadBytes = 5 << 20 // 5 MiB
	defaultTempMaxAge     = 24 * time.Hour
)

func Load() Config {
	cfg := Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		HTTPPort:        readEnv("HTTP_PORT", defaultHTTPPort),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		BaseURL:         readEnv("BASE_URL", defaultBaseURL),
		UploadDir:       readEnv("UPLOAD_DIR", defaultUploadDir),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CipherAlgorithm: readEnv("CIPHER_ALGORITHM", defaultCipher),
		MaxUploadBytes:  readInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		TempMaxAge:      time.Duration(readInt("TEMP_MAX_AGE_HOURS", 24)) * time.Hour,
	}
	// temp files hold decrypted plaintext; keep them out of the served tree
	cfg.TempDir = readEnv("TEMP_DIR", filepath.Join(os.TempDir(), "coffre"))
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.TempMaxAge <= 0 {
		cfg.TempMaxAge = defaultTempMaxAge
	}
	return cfg
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func readInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func readInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
