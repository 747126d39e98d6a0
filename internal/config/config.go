package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string
	JWTSecret  string

	PaymentAPIBase       string
	PaymentSecretKey     string
	PaymentCallbackToken string
	PublicBaseURL        string
	ClientSuccessURL     string
	ClientRetryURL       string
	Currency             string

	CheckoutTimeout time.Duration

	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	InternalSecretKey string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     getenv("DB_PORT", "5432"),
		AppPort:    getenv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		PaymentAPIBase:       getenv("PAYMENT_API_BASE", "https://api.stripe.com"),
		PaymentSecretKey:     os.Getenv("PAYMENT_SECRET_KEY"),
		PaymentCallbackToken: os.Getenv("PAYMENT_CALLBACK_TOKEN"),
		PublicBaseURL:        strings.TrimRight(getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		ClientSuccessURL:     getenv("CLIENT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		ClientRetryURL:       getenv("CLIENT_RETRY_URL", "http://localhost:3000/checkout/retry"),
		Currency:             strings.ToLower(getenv("CURRENCY", "vnd")),

		CheckoutTimeout: getDuration("CHECKOUT_TIMEOUT", 10*time.Second),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "order-events"),

		InternalSecretKey: os.Getenv("INTERNAL_SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
