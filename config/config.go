package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                      string
	VonageJWT                 string
	GeospecificMessagesAPIURL string
	MessagesAPIURL            string
	SMSSenderNumber           string
	CalendlySigningKey        string
	DynamoDBTable             string
	RedisAddr                 string
	RedisPassword             string
	RedisDB                   int
	FollowUpDelay             time.Duration
	SchedulerPollInterval     time.Duration
}

func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		Port:                      getEnv("PORT", "8080"),
		VonageJWT:                 getEnv("VONAGE_JWT", ""),
		GeospecificMessagesAPIURL: getEnv("GEOSPECIFIC_MESSAGES_API_URL", "https://api-us.nexmo.com/v1/messages"),
		MessagesAPIURL:            getEnv("MESSAGES_API_URL", "https://api.nexmo.com/v1/messages"),
		SMSSenderNumber:           getEnv("SMS_SENDER_NUMBER", ""),
		CalendlySigningKey:        getEnv("CALENDLY_WEBHOOK_SIGNING_KEY", ""),
		DynamoDBTable:             getEnv("DYNAMODB_TABLE", ""),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		FollowUpDelay:             getEnvDuration("FOLLOW_UP_DELAY", 30*time.Minute),
		SchedulerPollInterval:     getEnvDuration("SCHEDULER_POLL_INTERVAL", 5*time.Second),
	}

	if cfg.VonageJWT == "" {
		log.Fatal().Msg("VONAGE_JWT environment variable is required")
	}

	if cfg.SMSSenderNumber == "" {
		log.Fatal().Msg("SMS_SENDER_NUMBER environment variable is required")
	}

	if cfg.DynamoDBTable == "" {
		log.Fatal().Msg("DYNAMODB_TABLE environment variable is required")
	}

	if cfg.CalendlySigningKey == "" {
		// Deliberate operational bypass: with no signing key configured every
		// webhook is accepted. Fine for local development, a documented
		// security trade-off anywhere else.
		log.Warn().Msg("CALENDLY_WEBHOOK_SIGNING_KEY not set, webhook signature verification is disabled")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
