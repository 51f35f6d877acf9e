package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the service reads from the environment.
// godotenv is loaded in main before this is built; prod uses real env vars.
type Config struct {
	Port    string
	BaseURL string
	DBDSN   string

	JWTSecret string
	JWTTTL    time.Duration

	Mpesa    MpesaConfig
	Paystack PaystackConfig
	SMTP     SMTPConfig

	// Poller defaults (UX cutoffs, not payment cutoffs).
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Payout processing.
	PayoutBatchSize  int
	PayoutStuckAfter time.Duration

	NewRelicLicenseKey string
	NewRelicAppName    string
}

type MpesaConfig struct {
	BaseURL        string // https://sandbox.safaricom.co.ke or prod
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

type PaystackConfig struct {
	BaseURL   string
	SecretKey string
}

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	From          string
	FromName      string
	TLSMode       string // "", "tls", "starttls"
	SkipVerifyTLS bool
}

func Load() (Config, error) {
	cfg := Config{
		Port:    getenv("PORT", "8080"),
		BaseURL: getenv("BASE_URL", "http://localhost:8080"),
		DBDSN:   os.Getenv("DB_DSN"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getenvDuration("JWT_TTL", 24*time.Hour),

		Mpesa: MpesaConfig{
			BaseURL:        getenv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:      getenv("MPESA_SHORTCODE", "174379"),
			Passkey:        os.Getenv("MPESA_PASSKEY"),
			CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		},
		Paystack: PaystackConfig{
			BaseURL:   getenv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		},
		SMTP: SMTPConfig{
			Host:          os.Getenv("SMTP_HOST"),
			Port:          getenv("SMTP_PORT", "587"),
			User:          os.Getenv("SMTP_USERNAME"),
			Pass:          os.Getenv("SMTP_PASSWORD"),
			From:          getenv("SMTP_FROM", "no-reply@realtravo.com"),
			FromName:      getenv("SMTP_FROM_NAME", "Realtravo"),
			TLSMode:       getenv("SMTP_TLS_MODE", "starttls"),
			SkipVerifyTLS: getenvBool("SMTP_SKIP_VERIFY_TLS", false),
		},

		PollInterval: getenvDuration("PAYMENT_POLL_INTERVAL", 2*time.Second),
		PollTimeout:  getenvDuration("PAYMENT_POLL_TIMEOUT", 120*time.Second),

		PayoutBatchSize:  getenvInt("PAYOUT_BATCH_SIZE", 50),
		PayoutStuckAfter: getenvDuration("PAYOUT_STUCK_AFTER", 30*time.Minute),

		NewRelicLicenseKey: os.Getenv("NEW_RELIC_LICENSE_KEY"),
		NewRelicAppName:    getenv("NEW_RELIC_APP_NAME", "realtravo-api"),
	}

	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("DB_DSN environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
