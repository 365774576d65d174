// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Addr          string
	RoundDuration time.Duration
	TimerInterval time.Duration
	DatabaseURL   string
	CORSOrigins   []string
}

func Load(log *zap.Logger) Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file loaded", zap.Error(err))
	}
	return Config{
		Addr:          getEnv("ADDR", ":8080"),
		RoundDuration: getEnvAsDuration(log, "ROUND_DURATION", 20*time.Second),
		TimerInterval: getEnvAsDuration(log, "TIMER_INTERVAL", 200*time.Millisecond),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(log *zap.Logger, key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn("invalid duration, using default",
			zap.String("key", key), zap.String("value", value), zap.Duration("default", defaultValue))
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
