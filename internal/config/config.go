package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	DatabaseURL  string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	JWTSecret    string
	ReadyDelay   time.Duration
	SkillTimeout time.Duration
	EndScore     int
	LogLevel     string
}

// Load reads configuration from environment variables with sensible
// defaults. DATABASE_URL and REDIS_ADDR may be empty; the server then
// runs without persistence or the action historian.
func Load() *Config {
	return &Config{
		Addr:         getEnv("CABO_ADDR", ":8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisPass:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:      getEnvInt("REDIS_DB", 0),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		ReadyDelay:   time.Duration(getEnvInt("READY_DELAY_MS", 5000)) * time.Millisecond,
		SkillTimeout: time.Duration(getEnvInt("SKILL_TIMEOUT_MS", 15000)) * time.Millisecond,
		EndScore:     getEnvInt("END_SCORE", 100),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("config: %s=%q is not an integer, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
