package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI             string
	DBName               string
	JWTSecret            string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	PaymentWebhookSecret string
	Port                 string
}

// Load reads .env (if present) and the environment into a Config. The result
// is passed down explicitly; nothing here is a package-level mutable.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	return Config{
		MongoURI:             getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		DBName:               getEnvOrDefault("DB_NAME", "homemeal"),
		JWTSecret:            getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL:       getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),
		RefreshTokenTTL:      getDurationEnv("REFRESH_TOKEN_TTL", 7, 24*time.Hour),
		PaymentWebhookSecret: getEnvOrDefault("PAYMENT_WEBHOOK_SECRET", ""),
		Port:                 getEnvOrDefault("PORT", "8080"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
