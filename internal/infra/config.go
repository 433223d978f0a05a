package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	AppURL      string
	DatabaseURL string
	DBMaxConns  int
	GeoIPDBPath string

	GeminiAPIKey         string
	GeminiProAPIKey      string
	GeminiBaseURL        string
	GeminiPreviewModel   string
	GeminiHighModel      string
	GeminiValidatorModel string

	UnlockMode    string
	UnlockStore   string
	UnlockTTL     time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GenerateAllPolicy string
	GenerateAllDelay  time.Duration
	SessionTTL        time.Duration
	MaxUploadBytes    int64

	StripeSecretKey     string
	StripeWebhookSecret string

	AllowedOrigins   []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:"+port), "/"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 4),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		GeminiAPIKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiProAPIKey:      strings.TrimSpace(os.Getenv("GEMINI_PRO_API_KEY")),
		GeminiBaseURL:        os.Getenv("GEMINI_BASE_URL"),
		GeminiPreviewModel:   getEnv("GEMINI_PREVIEW_MODEL", "gemini-2.5-flash-image"),
		GeminiHighModel:      getEnv("GEMINI_HIGH_MODEL", "gemini-3-pro-image-preview"),
		GeminiValidatorModel: getEnv("GEMINI_VALIDATOR_MODEL", "gemini-2.5-flash-image"),

		UnlockMode:    strings.ToLower(getEnv("UNLOCK_MODE", "paywall")),
		UnlockStore:   strings.ToLower(getEnv("UNLOCK_STORE", "memory")),
		UnlockTTL:     getEnvDuration("UNLOCK_TTL", 0),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GenerateAllPolicy: strings.ToLower(getEnv("GENERATE_ALL_POLICY", "sequential")),
		GenerateAllDelay:  getEnvDuration("GENERATE_ALL_DELAY", 1200*time.Millisecond),
		SessionTTL:        getEnvDuration("SESSION_TTL", 2*time.Hour),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.UnlockMode {
	case "paywall", "upgrade":
	default:
		return fmt.Errorf("UNLOCK_MODE must be paywall or upgrade, got %q", c.UnlockMode)
	}
	switch c.UnlockStore {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when UNLOCK_STORE=postgres")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when UNLOCK_STORE=redis")
		}
	default:
		return fmt.Errorf("UNLOCK_STORE must be memory, postgres or redis, got %q", c.UnlockStore)
	}
	switch c.GenerateAllPolicy {
	case "sequential", "parallel":
	default:
		return fmt.Errorf("GENERATE_ALL_POLICY must be sequential or parallel, got %q", c.GenerateAllPolicy)
	}
	if c.UnlockMode == "paywall" && c.IsProduction() && c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required for the paywall in production")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CheckoutEnabled reports whether purchases can be taken.
func (c *Config) CheckoutEnabled() bool {
	return c.UnlockMode == "paywall" && c.StripeSecretKey != ""
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
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
