package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration (user-facing push)
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// RabbitMQ configuration (booking lifecycle events)
	RabbitMQURL string

	// Reservation configuration
	ReservationWindow time.Duration
	SweepInterval     time.Duration
	SweepBatchSize    int

	// VietQR configuration
	VietQR VietQRConfig

	// PayOS configuration
	PayOS PayOSConfig

	// POS configuration
	POSOperatorPINHash string

	// Monitoring
	EnableMetrics bool
	MetricsPort   string

	// Rate limiting
	ReserveRateLimit int
}

type VietQRConfig struct {
	BankBIN       string
	AccountNumber string
	AccountName   string
	WebhookKey    string

	// Bank notification subscription
	PNSubKey    string
	PNSecretKey string
	PNChannel   string
	PNUUID      string
}

type PayOSConfig struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
}

func LoadConfig() *Config {
	// Missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// RabbitMQ (optional; empty disables the publisher)
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		// Reservation
		ReservationWindow: getEnvAsDuration("RESERVATION_WINDOW", "15m"),
		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", "1m"),
		SweepBatchSize:    getEnvAsInt("SWEEP_BATCH_SIZE", 200),

		VietQR: VietQRConfig{
			BankBIN:       getEnv("VIETQR_BANK_BIN", "970436"),
			AccountNumber: getEnv("VIETQR_ACCOUNT_NUMBER", ""),
			AccountName:   getEnv("VIETQR_ACCOUNT_NAME", ""),
			WebhookKey:    getEnv("VIETQR_WEBHOOK_KEY", ""),
			PNSubKey:      getEnv("VIETQR_PN_SUBKEY", ""),
			PNSecretKey:   getEnv("VIETQR_PN_SECRET", ""),
			PNChannel:     getEnv("VIETQR_PN_CHANNEL", "bank-payment-notifications"),
			PNUUID:        getEnv("VIETQR_PN_UUID", "ticket-booking"),
		},

		PayOS: PayOSConfig{
			BaseURL:     getEnv("PAYOS_BASE_URL", "https://api-merchant.payos.vn"),
			ClientID:    getEnv("PAYOS_CLIENT_ID", ""),
			APIKey:      getEnv("PAYOS_API_KEY", ""),
			ChecksumKey: getEnv("PAYOS_CHECKSUM_KEY", ""),
			ReturnURL:   getEnv("PAYOS_RETURN_URL", ""),
			CancelURL:   getEnv("PAYOS_CANCEL_URL", ""),
		},

		POSOperatorPINHash: getEnv("POS_OPERATOR_PIN_HASH", ""),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),

		// Rate limiting
		ReserveRateLimit: getEnvAsInt("RESERVE_RATE_LIMIT", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
