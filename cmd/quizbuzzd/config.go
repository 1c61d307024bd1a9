package main

import (
	"os"
	"strconv"
	"time"

	"github.com/kunpitech/quizbuzz/internal/room"
	"github.com/kunpitech/quizbuzz/internal/store"
)

type Config struct {
	Port string

	// StoreBackend selects the shared store: "memory" or "nats".
	StoreBackend string
	NATS         store.NATSConfig

	// QuestionSource selects the catalogue: "yaml" or "postgres".
	QuestionSource string
	QuestionFile   string

	Database DatabaseConfig

	Room room.Config
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func loadConfig() Config {
	nats := store.DefaultNATSConfig()
	nats.URL = getEnv("NATS_URL", nats.URL)
	nats.Bucket = getEnv("NATS_BUCKET", nats.Bucket)

	roomCfg := room.DefaultConfig()
	roomCfg.QuestionDuration = getEnvAsSeconds("QUESTION_DURATION_SEC", roomCfg.QuestionDuration)
	roomCfg.WatchdogGrace = getEnvAsMillis("WATCHDOG_GRACE_MS", roomCfg.WatchdogGrace)
	roomCfg.ResultHold = getEnvAsSeconds("RESULT_HOLD_SEC", roomCfg.ResultHold)
	roomCfg.NextCountdown = getEnvAsSeconds("NEXT_COUNTDOWN_SEC", roomCfg.NextCountdown)
	roomCfg.QuestionCount = getEnvAsInt("QUESTION_COUNT", roomCfg.QuestionCount)

	return Config{
		Port:           getEnv("PORT", "8080"),
		StoreBackend:   getEnv("STORE_BACKEND", "memory"),
		NATS:           nats,
		QuestionSource: getEnv("QUESTION_SOURCE", "yaml"),
		QuestionFile:   getEnv("QUESTION_FILE", "questions.yaml"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "quizbuzz"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Room: roomCfg,
	}
}
