package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPPort          int
	OrderSyncHTTPPort int

	MerchantSecret  string
	DefaultCurrency string
	AllowedOrigins  []string

	PaymentsStore string

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}
	DBConnectRetries    int
	DBConnectRetryDelay time.Duration
	MigrationsPath      string

	MongoURI      string
	MongoDatabase string

	KafkaBrokerURL          string
	KafkaPaymentStatusTopic string
	KafkaConsumerGroup      string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8082)
	cfg.OrderSyncHTTPPort = getEnvAsInt("ORDERSYNC_HTTP_PORT", 8083)

	cfg.MerchantSecret = getEnvOrDefault("PAYHERE_MERCHANT_SECRET", "")
	cfg.DefaultCurrency = getEnvOrDefault("PAYHERE_DEFAULT_CURRENCY", "LKR")
	cfg.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS",
		"http://localhost:3006,http://localhost:3002,https://sandbox.payhere.lk")

	cfg.PaymentsStore = strings.ToLower(getEnvOrDefault("PAYMENTS_STORE", StorePostgres))
	switch cfg.PaymentsStore {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("invalid PAYMENTS_STORE %q: want %s, %s or %s",
			cfg.PaymentsStore, StorePostgres, StoreMongo, StoreMemory)
	}

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "payments_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")
	cfg.DBConnectRetries = getEnvAsInt("DB_CONNECT_RETRIES", 10)
	cfg.DBConnectRetryDelay = getEnvAsDuration("DB_CONNECT_RETRY_DELAY", 5*time.Second)
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file://migrations")

	cfg.MongoURI = getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017")
	cfg.MongoDatabase = getEnvOrDefault("MONGO_DATABASE", "storefront")

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaPaymentStatusTopic = getEnvOrDefault("KAFKA_PAYMENT_STATUS_TOPIC", "payment_status_updates")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "ordersync-group")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)

	return cfg, nil
}

func (c *Config) GetKafkaBrokers() []string {
	return splitList(c.KafkaBrokerURL)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key, defaultValue string) []string {
	return splitList(getEnvOrDefault(key, defaultValue))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
