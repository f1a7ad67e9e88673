package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "solarscope-dev-secret"

type Config struct {
	Port     string
	GinMode  string
	AppEnv   string
	LogLevel string

	DatabaseURL string
	DBMigrate   bool
	RedisURL    string

	JWTSecret     string
	JWTTTL        time.Duration
	SessionTTL    time.Duration
	SessionCookie string

	StoreProbeDelay   time.Duration
	StoreProbeTimeout time.Duration

	GCPProject  string
	GCPLocation string
	GeminiModel string
	GCSBucket   string
	GCSPrefix   string
	GCSPublic   bool

	UploadDir       string
	UploadMaxAge    time.Duration
	CleanupInterval time.Duration
}

// IsProduction gates the maintenance endpoints.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		GinMode:  os.Getenv("GIN_MODE"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMigrate:   getBool("DB_MIGRATE", true),
		RedisURL:    firstEnv("REDIS_URL", "REDIS_ADDR", "REDIS_URI"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTTTL:        getDuration("JWT_TTL", 24*time.Hour),
		SessionTTL:    getDuration("SESSION_TTL", 24*time.Hour),
		SessionCookie: getEnv("SESSION_COOKIE", "solarscope.sid"),

		StoreProbeDelay:   getDuration("STORE_PROBE_DELAY", 2*time.Second),
		StoreProbeTimeout: getDuration("STORE_PROBE_TIMEOUT", 5*time.Second),

		GCPProject:  os.Getenv("GCP_PROJECT"),
		GCPLocation: getEnv("GCP_LOCATION", "us-central1"),
		GeminiModel: getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GCSBucket:   os.Getenv("GCS_BUCKET"),
		GCSPrefix:   getEnv("GCS_PREFIX", "analyses"),
		GCSPublic:   getBool("GCS_PUBLIC_READ", false),

		UploadDir:       getEnv("UPLOAD_DIR", filepath.Join(os.TempDir(), "solarscope")),
		UploadMaxAge:    getDuration("UPLOAD_MAX_AGE", time.Hour),
		CleanupInterval: getDuration("CLEANUP_INTERVAL", 10*time.Minute),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET environment variable is not set")
		}
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

// getDuration accepts Go durations ("90s") or plain seconds ("90").
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
