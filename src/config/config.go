package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port                   string
	DatabasePath           string
	LogLevel               string
	MaxUploadSizeBytes     int64
	ImportHistoryRetention int
	DefaultImportSource    string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found, relying on OS environment variables and defaults.")
	} else {
		log.Println(".env file loaded successfully.")
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	retention := getEnvAsInt("IMPORT_HISTORY_RETENTION", 20)
	if retention < 1 {
		log.Printf("WARNING: IMPORT_HISTORY_RETENTION must be at least 1, got %d. Using default 20.", retention)
		retention = 20
	}

	Cfg = &AppConfig{
		Port:                   getEnv("PORT", "8080"),
		DatabasePath:           getEnv("DATABASE_PATH", "./ledgervault.db"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		MaxUploadSizeBytes:     maxUploadSizeBytes,
		ImportHistoryRetention: retention,
		DefaultImportSource:    getEnv("DEFAULT_IMPORT_SOURCE", "qif"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, Retention=%d",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.ImportHistoryRetention)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}
