package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr        string
	MySQLDSN        string
	RedisAddr       string
	WebhookURL      string
	StorageTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// Load reads configuration from the environment, falling back to local-dev
// defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MySQLDSN:        getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", ""),
		StorageTimeout:  getDuration("STORAGE_TIMEOUT", 5*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		MaxOpenConns:    getInt("MYSQL_MAX_OPEN_CONNS", 50),
		MaxIdleConns:    getInt("MYSQL_MAX_IDLE_CONNS", 25),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
