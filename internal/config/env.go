package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Env struct {
	AppAddr           string
	GinMode           string
	DBDSN             string
	BusinessTZ        string
	JWTSecret         string
	KafkaBrokers      string
	KafkaTopic        string
	ReconcileInterval time.Duration
	SessionTTL        time.Duration
	LogLevel          string
	LogFormat         string
}

// LoadEnv reads configuration from the environment, with an optional .env
// file for local development.
func LoadEnv() Env {
	_ = godotenv.Load()

	return Env{
		AppAddr:           getString("APP_ADDR", ":8080"),
		GinMode:           getString("GIN_MODE", ""),
		DBDSN:             getString("DB_DSN", "root:@tcp(127.0.0.1:3306)/busline?parseTime=true&charset=utf8mb4"),
		BusinessTZ:        getString("BUSINESS_TZ", "Asia/Jakarta"),
		JWTSecret:         getString("JWT_SECRET", "super-secret-key-change-me"),
		KafkaBrokers:      getString("KAFKA_BROKERS", ""),
		KafkaTopic:        getString("KAFKA_TOPIC", "busline.tasks"),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL_MIN", 5) * time.Minute,
		SessionTTL:        getDuration("SESSION_TTL_MIN", 30) * time.Minute,
		LogLevel:          getString("LOG_LEVEL", "info"),
		LogFormat:         getString("LOG_FORMAT", "text"),
	}
}

func getString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallbackMin int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(fallbackMin)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(fallbackMin)
	}
	return time.Duration(n)
}
