package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const maxWorkers = 10

type Config struct {
	DatabaseURL  string
	Port         string
	ImportDir    string
	BatchSize    int
	Workers      int
	LeaseSeconds int
	MaxAttempts  int
	MaxFileBytes int64
	SMTP         SMTP
	LogLevel     string
	LogFormat    string
}

type SMTP struct {
	Addr     string
	From     string
	Username string
	Password string
}

func (c Config) LeaseDuration() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// Load reads the environment, after an optional .env file in the working
// directory.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		Port:         getEnv("PORT", "8080"),
		ImportDir:    getEnv("IMPORT_BASE_DIR", "./storage/imports"),
		BatchSize:    positiveIntEnv("IMPORT_BATCH_SIZE", 100),
		Workers:      parseWorkerCount(),
		LeaseSeconds: positiveIntEnv("IMPORT_JOB_LEASE_SECONDS", 60),
		MaxAttempts:  positiveIntEnv("IMPORT_MAX_ATTEMPTS", 3),
		MaxFileBytes: int64(positiveIntEnv("IMPORT_MAX_FILE_MB", 25)) << 20,
		SMTP: SMTP{
			Addr:     os.Getenv("SMTP_ADDR"),
			From:     getEnv("SMTP_FROM", "imports@localhost"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func parseWorkerCount() int {
	workers := positiveIntEnv("IMPORT_WORKERS", 4)
	if workers > maxWorkers {
		return maxWorkers
	}
	return workers
}

func positiveIntEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
