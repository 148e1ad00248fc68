package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	Environment     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	KafkaBrokers []string

	// Offline push tuning
	OfflineBatchSize  int64
	OfflineReloadSize int
	OfflineBatchDelay int64 // ms between batches for the same recipient
	OfflineTTLHours   int
	SweepIntervalSec  int64
	JobAttempts       int
	JobBackoffMs      int64
	WorkerConcurrency int
	HeartbeatTTLSec   int64
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisPoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),

		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", nil),

		OfflineBatchSize:  getEnvAsInt64("OFFLINE_BATCH_SIZE", 10),
		OfflineReloadSize: getEnvAsInt("OFFLINE_RELOAD_SIZE", 100),
		OfflineBatchDelay: getEnvAsInt64("OFFLINE_BATCH_DELAY_MS", 1000),
		OfflineTTLHours:   getEnvAsInt("OFFLINE_TTL_HOURS", 7*24),
		SweepIntervalSec:  getEnvAsInt64("OFFLINE_SWEEP_INTERVAL_SEC", 300),
		JobAttempts:       getEnvAsInt("JOB_ATTEMPTS", 3),
		JobBackoffMs:      getEnvAsInt64("JOB_BACKOFF_MS", 1000),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 3),
		HeartbeatTTLSec:   getEnvAsInt64("HEARTBEAT_TTL_SEC", 15),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
