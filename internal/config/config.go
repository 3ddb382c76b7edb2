// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret    string
	JWTExpiry    time.Duration
	OwnerID      string // sole account allowed to manage personas and settings
	TokenSignKey []byte // 32-byte HMAC key derived from JWTSecret

	// Ollama
	OllamaURL            string
	ChatModel            string
	EmbeddingModel       string
	DefaultTemperature   float64
	DefaultMaxTokens     int
	DefaultMemoryDepth   int
	DefaultReplyCooldown time.Duration

	// Bot identity
	BotName string

	// CORS
	CORSOrigins []string

	// Object Storage (S3-compatible) for transcript and persona exports
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// Memory indexing worker
	WorkerPollInterval time.Duration
	WorkerBatchSize    int

	// History retention
	RetentionEnabled  bool
	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration

	// Security tracker
	SecurityStrikeThreshold int
	SecurityMaxStrikes      int
	SecurityBlockDuration   time.Duration
	SecurityCleanupInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:personaforge.db?_journal=WAL&_timeout=5000"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 720*time.Hour),
		OwnerID:   getEnv("OWNER_ID", ""),

		OllamaURL:            getEnv("OLLAMA_URL", "http://localhost:11434"),
		ChatModel:            getEnv("OLLAMA_CHAT_MODEL", "llama3.2"),
		EmbeddingModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
		DefaultTemperature:   getEnvFloat("TEMPERATURE", 0.7),
		DefaultMaxTokens:     getEnvInt("MAX_TOKENS", 2048),
		DefaultMemoryDepth:   getEnvInt("MEMORY_DEPTH", 10),
		DefaultReplyCooldown: getEnvDuration("REPLY_COOLDOWN", 0),

		BotName: getEnv("BOT_NAME", "Assistant"),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 30*time.Second),
		WorkerBatchSize:    getEnvInt("WORKER_BATCH_SIZE", 20),

		RetentionEnabled:  getEnvBool("RETENTION_ENABLED", false),
		RetentionMaxAge:   getEnvDuration("RETENTION_MAX_AGE", 90*24*time.Hour),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),

		SecurityStrikeThreshold: getEnvInt("SECURITY_STRIKE_THRESHOLD", 30),
		SecurityMaxStrikes:      getEnvInt("SECURITY_MAX_STRIKES", 3),
		SecurityBlockDuration:   getEnvDuration("SECURITY_BLOCK_DURATION", 5*time.Minute),
		SecurityCleanupInterval: getEnvDuration("SECURITY_CLEANUP_INTERVAL", time.Hour),
	}

	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.OwnerID == "" {
		return nil, fmt.Errorf("OWNER_ID is required")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateRandomSecret(64)
	}
	cfg.TokenSignKey = deriveSigningKey(cfg.JWTSecret)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback (should never happen)
		return "change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveSigningKey creates a 32-byte HMAC key from the JWT secret using
// HKDF with SHA-256. Binding the key to its purpose via the info string
// keeps it distinct from any other key derived from the same secret.
func deriveSigningKey(secret string) []byte {
	salt := []byte("personaforge-token-key-v1")
	info := []byte("hmac-sha256-owner-token")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// This should never happen with valid inputs
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
