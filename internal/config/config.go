package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the booking service.
type Config struct {
	LogLevel         string
	HTTPAddr         string
	GRPCAddr         string
	ProviderTimezone string
	Currency         string
	PublicBaseURL    string
	FrontendURL      string
	ScheduleSeedFile string

	DB *DBConfig

	PayPalMode         string
	PayPalClientID     string
	PayPalClientSecret string
	AllowFakePayments  bool

	EmailProvider           string
	SendGridAPIKey          string
	FromEmail               string
	FromName                string
	ProviderEmail           string
	PaymentDestinationEmail string
	NotifyTimeout           time.Duration

	AWSRegion          string
	ProofArchiveBucket string

	RedisAddr             string
	RedisPassword         string
	StrictSlotReservation bool
	ReservationTTL        time.Duration

	AdminUsername     string
	AdminPasswordHash string
	AdminJWTSecret    string
	AdminTokenTTL     time.Duration

	CORSAllowedOrigins []string
	PublicRateLimit    float64
	PublicRateBurst    int
	// X-Forwarded-For/X-Real-IP учитываются только за доверенным прокси.
	TrustProxyHeaders bool
	ShutdownTimeout   time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env нужен только локально, в проде переменные приходят из окружения.
	_ = godotenv.Load()

	dbCfg, err := LoadDBConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:         getEnv("GRPC_ADDR", ":50051"),
		ProviderTimezone: getEnv("PROVIDER_TIMEZONE", "America/Caracas"),
		Currency:         strings.ToUpper(getEnv("CURRENCY", "USD")),
		PublicBaseURL:    strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		FrontendURL:      strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		ScheduleSeedFile: getEnv("SCHEDULE_SEED_FILE", ""),

		DB: dbCfg,

		PayPalMode:         strings.ToLower(getEnv("PAYPAL_MODE", "sandbox")),
		PayPalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
		AllowFakePayments:  getEnvAsBool("ALLOW_FAKE_PAYMENTS", false),

		EmailProvider:           strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:          getEnv("SENDGRID_API_KEY", ""),
		FromEmail:               getEnv("FROM_EMAIL", "no-reply@example.com"),
		FromName:                getEnv("FROM_NAME", "Consultation Booking"),
		ProviderEmail:           getEnv("PROVIDER_EMAIL", ""),
		PaymentDestinationEmail: getEnv("PAYMENT_DESTINATION_EMAIL", "payments@example.com"),
		NotifyTimeout:           getEnvAsDuration("NOTIFY_TIMEOUT", 30*time.Second),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		ProofArchiveBucket: getEnv("PROOF_ARCHIVE_BUCKET", ""),

		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		StrictSlotReservation: getEnvAsBool("STRICT_SLOT_RESERVATION", false),
		ReservationTTL:        getEnvAsDuration("RESERVATION_LOCK_TTL", 10*time.Second),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		AdminTokenTTL:     getEnvAsDuration("ADMIN_TOKEN_TTL", 12*time.Hour),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		PublicRateLimit:    getEnvAsFloat("PUBLIC_RATE_LIMIT", 5),
		PublicRateBurst:    getEnvInt("PUBLIC_RATE_BURST", 20),
		TrustProxyHeaders:  getEnvAsBool("TRUST_PROXY_HEADERS", false),
		ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.EmailProvider {
	case "sendgrid", "ses", "stub":
	default:
		return fmt.Errorf("invalid config: unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	switch c.PayPalMode {
	case "sandbox", "live":
	default:
		return fmt.Errorf("invalid config: PAYPAL_MODE must be sandbox or live, got %q", c.PayPalMode)
	}
	if c.StrictSlotReservation && c.RedisAddr == "" {
		return fmt.Errorf("invalid config: STRICT_SLOT_RESERVATION requires REDIS_ADDR")
	}
	if c.PublicRateLimit < 0 {
		return fmt.Errorf("invalid config: PUBLIC_RATE_LIMIT must not be negative")
	}
	return nil
}

// PayPalConfigured reports whether real PayPal credentials are present.
func (c *Config) PayPalConfigured() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
