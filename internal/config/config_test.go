package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		// t.Setenv restores the previous value when the test ends.
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_USER", "testuser")
		t.Setenv("DB_PASSWORD", "testpass")
		t.Setenv("DB_NAME", "testdb")
		t.Setenv("DB_PORT", "5433")
		t.Setenv("APP_PORT", "8080")
		t.Setenv("APP_ENV", "test")
		t.Setenv("JWT_SECRET", "jwt-secret")
		t.Setenv("PAYMENT_SECRET_KEY", "sk_test")
		t.Setenv("PAYMENT_CALLBACK_TOKEN", "cb-token")
		t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
		t.Setenv("CURRENCY", "VND")
		t.Setenv("CHECKOUT_TIMEOUT", "3s")
		t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

		cfg := LoadConfig()

		assert.NotNil(t, cfg)
		assert.Equal(t, "localhost", cfg.DBHost)
		assert.Equal(t, "testuser", cfg.DBUser)
		assert.Equal(t, "testpass", cfg.DBPassword)
		assert.Equal(t, "testdb", cfg.DBName)
		assert.Equal(t, "5433", cfg.DBPort)
		assert.Equal(t, "8080", cfg.AppPort)
		assert.Equal(t, "test", cfg.AppEnv)
		assert.Equal(t, "jwt-secret", cfg.JWTSecret)
		assert.Equal(t, "sk_test", cfg.PaymentSecretKey)
		assert.Equal(t, "cb-token", cfg.PaymentCallbackToken)
		assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
		assert.Equal(t, "vnd", cfg.Currency)
		assert.Equal(t, 3*time.Second, cfg.CheckoutTimeout)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_PORT", "")
		t.Setenv("CHECKOUT_TIMEOUT", "not-a-duration")
		t.Setenv("KAFKA_BROKERS", "")
		t.Setenv("KAFKA_TOPIC", "")

		cfg := LoadConfig()

		assert.Equal(t, "5432", cfg.DBPort)
		assert.Equal(t, 10*time.Second, cfg.CheckoutTimeout)
		assert.Empty(t, cfg.KafkaBrokers)
		assert.Equal(t, "order-events", cfg.KafkaTopic)
	})
}
