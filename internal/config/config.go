package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration, loaded from environment
// variables with sensible defaults for local development.
type Config struct {
	Port     string
	LogLevel string

	// Persistence. When MongoURI is set the Mongo-backed store and user
	// repository are used; otherwise state lives in JSON files under DataDir.
	MongoURI      string
	MongoDatabase string
	DataDir       string

	// Optional Redis backend for presence and rate limiting.
	RedisURL string

	// Authentication.
	JWTSecret string
	TokenTTL  time.Duration

	// Uploads.
	UploadDir     string
	MaxUploadSize int64

	// Message limits.
	MaxMessageLength int

	// AI assistant collaborator.
	AIAPIURL  string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	// Rate limiting for the REST API. The AI endpoint gets its own,
	// stricter window.
	RateLimitRequests   int
	RateLimitWindow     time.Duration
	AIRateLimitRequests int
	AIRateLimitWindow   time.Duration
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "5000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "twintalk"),
		DataDir:       getEnv("DATA_DIR", "data"),

		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "twin-talk-dev-secret"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 7*24*time.Hour),

		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSize: int64(getEnvInt("MAX_UPLOAD_SIZE", 10*1024*1024)),

		MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 2000),

		AIAPIURL:  getEnv("AI_API_URL", "https://api.openai.com/v1/chat/completions"),
		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "gpt-3.5-turbo"),
		AITimeout: getEnvDuration("AI_TIMEOUT", 10*time.Second),

		RateLimitRequests:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		AIRateLimitRequests: getEnvInt("AI_RATE_LIMIT_REQUESTS", 10),
		AIRateLimitWindow:   getEnvDuration("AI_RATE_LIMIT_WINDOW", time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
