package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is loaded once at startup and injected everywhere; nothing else in
// the codebase reads the environment.
type Config struct {
	HTTPAddr    string
	DatabaseURL string

	RabbitUser string
	RabbitPass string
	RabbitHost string
	RabbitPort string

	WorkerCount int

	CarrierAccountSID string
	CarrierAuthToken  string
	CarrierFromNumber string
	CarrierBaseURL    string

	PhoneEncryptionKey []byte
	PhoneHashKey       []byte

	MailHost      string
	MailPort      int
	MailUser      string
	MailPass      string
	AlertToAddr   string
	AlertFromAddr string
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		RabbitUser: getEnv("RABBITMQ_USER", "guest"),
		RabbitPass: getEnv("RABBITMQ_PASS", "guest"),
		RabbitHost: getEnv("RABBITMQ_HOST", "localhost"),
		RabbitPort: getEnv("RABBITMQ_PORT", "5672"),

		WorkerCount: getEnvInt("WORKER_COUNT", 4),

		CarrierAccountSID: os.Getenv("CARRIER_ACCOUNT_SID"),
		CarrierAuthToken:  os.Getenv("CARRIER_AUTH_TOKEN"),
		CarrierFromNumber: os.Getenv("CARRIER_FROM_NUMBER"),
		CarrierBaseURL:    getEnv("CARRIER_BASE_URL", "https://api.twilio.com"),

		PhoneEncryptionKey: []byte(os.Getenv("PHONE_ENCRYPTION_KEY")),
		PhoneHashKey:       []byte(os.Getenv("PHONE_HASH_KEY")),

		MailHost:      os.Getenv("MAIL_HOST"),
		MailPort:      getEnvInt("MAIL_PORT", 587),
		MailUser:      os.Getenv("MAIL_USER"),
		MailPass:      os.Getenv("MAIL_PASS"),
		AlertToAddr:   os.Getenv("ALERT_TO_ADDR"),
		AlertFromAddr: getEnv("ALERT_FROM_ADDR", "pipeline@rylie.app"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if len(cfg.PhoneEncryptionKey) != 32 {
		return nil, fmt.Errorf("PHONE_ENCRYPTION_KEY must be 32 bytes, got %d", len(cfg.PhoneEncryptionKey))
	}
	if len(cfg.PhoneHashKey) == 0 {
		return nil, errors.New("PHONE_HASH_KEY is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
