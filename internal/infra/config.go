package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rate limiter backends.
const (
	RateLimitBackendPostgres = "postgres"
	RateLimitBackendRedis    = "redis"
	RateLimitBackendMemory   = "memory"
)

// Storage drivers.
const (
	StorageDriverSupabase   = "supabase"
	StorageDriverFilesystem = "filesystem"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	GeoIPDBPath string
	CORSOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	DBMaxConns       int

	RateLimitPerMinute int
	RateLimitPerDay    int
	RateLimitBackend   string

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	StorageDriver        string
	SupabaseURL          string
	SupabaseServiceKey   string
	StoragePath          string
	StorageBaseURL       string
	StorageSigningSecret string
	InputBucket          string
	OutputBucket         string
	SignedURLTTL         time.Duration
	FetchTimeout         time.Duration
	MaxUploadBytes       int64

	GeminiAPIKey string
	GeminiModel  string

	JobTimeout        time.Duration
	JobStaleAfter     time.Duration
	SweepInterval     time.Duration
	CostPerGeneration int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 10),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		RateLimitPerDay:    getEnvInt("RATE_LIMIT_PER_DAY", 100),
		RateLimitBackend:   strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendPostgres)),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),

		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverFilesystem)),
		SupabaseURL:          strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey:   os.Getenv("SUPABASE_SERVICE_KEY"),
		StoragePath:          getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:       strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port), "/"),
		StorageSigningSecret: os.Getenv("STORAGE_SIGNING_SECRET"),
		InputBucket:          getEnv("INPUT_BUCKET", "input-images"),
		OutputBucket:         getEnv("OUTPUT_BUCKET", "output-images"),
		SignedURLTTL:         time.Second * time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 300)),
		FetchTimeout:         time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		JobTimeout:        time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 120)),
		JobStaleAfter:     time.Minute * time.Duration(getEnvInt("JOB_STALE_AFTER_MINUTES", 10)),
		SweepInterval:     time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)),
		CostPerGeneration: getEnvInt("COST_PER_GENERATION", 1),
	}

	if cfg.StorageSigningSecret == "" {
		cfg.StorageSigningSecret = cfg.JWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and cross-field constraints.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitPerDay <= 0 {
		return errors.New("rate limits must be positive")
	}
	switch c.RateLimitBackend {
	case RateLimitBackendPostgres, RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}
	switch c.StorageDriver {
	case StorageDriverFilesystem:
		if strings.TrimSpace(c.StoragePath) == "" {
			return errors.New("STORAGE_PATH is required for the filesystem storage driver")
		}
	case StorageDriverSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase storage driver")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.CostPerGeneration <= 0 {
		return errors.New("COST_PER_GENERATION must be positive")
	}
	if c.JobTimeout <= 0 {
		return errors.New("JOB_TIMEOUT_SECONDS must be positive")
	}
	if c.JobStaleAfter <= c.JobTimeout {
		return fmt.Errorf("JOB_STALE_AFTER_MINUTES (%s) must exceed JOB_TIMEOUT_SECONDS (%s)", c.JobStaleAfter, c.JobTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
