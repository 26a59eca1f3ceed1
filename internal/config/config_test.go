package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPPort != 8082 || cfg.DefaultCurrency != "LKR" || cfg.PaymentsStore != StorePostgres {
		t.Errorf("defaults = port %d currency %s store %s", cfg.HTTPPort, cfg.DefaultCurrency, cfg.PaymentsStore)
	}
	if cfg.OutboxPollInterval != time.Second || cfg.OutboxPollTimeout != 500*time.Millisecond {
		t.Errorf("outbox timings = %s/%s", cfg.OutboxPollInterval, cfg.OutboxPollTimeout)
	}
	if cfg.KafkaPaymentStatusTopic != "payment_status_updates" {
		t.Errorf("topic = %s", cfg.KafkaPaymentStatusTopic)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PAYHERE_MERCHANT_SECRET", "s3cret")
	t.Setenv("PAYHERE_DEFAULT_CURRENCY", "USD")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://shop.example , ,https://admin.example")
	t.Setenv("PAYMENTS_STORE", "Mongo")
	t.Setenv("KAFKA_BROKER_URL", "k1:9092,k2:9092")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("DB_CONNECT_RETRIES", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPPort != 9000 || cfg.MerchantSecret != "s3cret" || cfg.DefaultCurrency != "USD" {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := []string{"https://shop.example", "https://admin.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if cfg.PaymentsStore != StoreMongo {
		t.Errorf("PaymentsStore = %s, want mongo", cfg.PaymentsStore)
	}
	if want := []string{"k1:9092", "k2:9092"}; !reflect.DeepEqual(cfg.GetKafkaBrokers(), want) {
		t.Errorf("brokers = %v, want %v", cfg.GetKafkaBrokers(), want)
	}
	if cfg.OutboxPollInterval != 250*time.Millisecond {
		t.Errorf("OutboxPollInterval = %s", cfg.OutboxPollInterval)
	}
	if cfg.DBConnectRetries != 10 {
		t.Errorf("DBConnectRetries = %d, want default for an invalid value", cfg.DBConnectRetries)
	}
}

func TestLoadConfig_InvalidStore(t *testing.T) {
	t.Setenv("PAYMENTS_STORE", "redis")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() error = nil for an unknown store")
	}
}
