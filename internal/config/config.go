package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application. It is built once in
// main and passed down; nothing below main reads the environment.
type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	MigrationsDir string

	// WebhookSecret is the provider signing secret. When empty the webhook
	// endpoint answers 500 without doing any work.
	WebhookSecret      string
	SignatureTolerance time.Duration
	WebhookRateLimit   int
	EventLedgerTTL     time.Duration

	SupabaseURL        string
	SupabaseServiceKey string

	ResendAPIKey string
	ResendURL    string
	WelcomeFrom  string
	PortalURL    string
	SupportEmail string

	TierTablePath  string
	StoreTimeout   time.Duration
	NotifyTimeout  time.Duration
	PasswordLength int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),

		WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SignatureTolerance: getEnvDuration("WEBHOOK_SIGNATURE_TOLERANCE", 0),
		WebhookRateLimit:   getEnvInt("WEBHOOK_RATE_LIMIT", 0),
		EventLedgerTTL:     getEnvDuration("EVENT_LEDGER_TTL", 72*time.Hour),

		SupabaseURL:        getEnv("SUPABASE_URL", getEnv("NEXT_PUBLIC_SUPABASE_URL", "")),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		ResendURL:    getEnv("RESEND_URL", "https://api.resend.com"),
		WelcomeFrom:  getEnv("WELCOME_FROM", "SignalCore IntelliLead <welcome@signalcoredata.com>"),
		PortalURL:    getEnv("PORTAL_URL", "https://portal.signalcoredata.com/login"),
		SupportEmail: getEnv("SUPPORT_EMAIL", "support@signalcoredata.com"),

		TierTablePath:  getEnv("TIER_TABLE_PATH", ""),
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		NotifyTimeout:  getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		PasswordLength: getEnvInt("TEMP_PASSWORD_LENGTH", 12),
	}

	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if cfg.NotifyTimeout <= 0 {
		return nil, fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if cfg.PasswordLength < 8 {
		return nil, fmt.Errorf("TEMP_PASSWORD_LENGTH must be at least 8")
	}
	if (cfg.SupabaseURL == "") != (cfg.SupabaseServiceKey == "") {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY must be set together")
	}

	return cfg, nil
}

// ProvisioningEnabled reports whether new checkouts get a login.
func (c *Config) ProvisioningEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
