package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RecipeTTLSeconds      int
	AuthSecret            string
	AccessTokenTTLMinutes int
	WebhookSecret         string
	KafkaBrokers          string
	KafkaTopic            string
	OutboxIntervalSeconds int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	recipeTTL, err := strconv.Atoi(getEnv("RECIPE_TTL_SECONDS", "600"))
	if err != nil || recipeTTL < 1 {
		recipeTTL = 600
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	outboxInterval, err := strconv.Atoi(getEnv("OUTBOX_INTERVAL_SECONDS", "2"))
	if err != nil || outboxInterval < 1 {
		outboxInterval = 2
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		RecipeTTLSeconds:      recipeTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		WebhookSecret:         strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")),
		KafkaBrokers:          os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "banhngot-events"),
		OutboxIntervalSeconds: outboxInterval,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
