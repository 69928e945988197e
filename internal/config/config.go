package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment. Secrets and
// lifetimes are validated once at boot; a bad value here is fatal, not a
// per-request error.
type Config struct {
	HTTPAddr  string
	APIPrefix string
	LogLevel  string

	JWTSecret     string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	RedisAddr    string
	KafkaAddress string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		APIPrefix:     getenv("API_PREFIX", "/api/v1"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		RefreshSecret: os.Getenv("REFRESH_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		KafkaAddress:  os.Getenv("KAFKA_ADDRESS"),
	}

	var err error
	if config.AccessTTL, err = ParseLifetime(getenv("ACCESS_TOKEN_TTL", "15m")); err != nil {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL: %w", err)
	}
	if config.RefreshTTL, err = ParseLifetime(getenv("REFRESH_TOKEN_TTL", "7d")); err != nil {
		return nil, fmt.Errorf("REFRESH_TOKEN_TTL: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports the first missing or inconsistent value. The refresh
// secret is optional; token signing falls back to JWTSecret when it is empty.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("missing required env JWT_SECRET")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_TTL must be positive")
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with '/', got %q", c.APIPrefix)
	}
	return nil
}

// ParseLifetime reads token lifetime strings of the form "90s", "15m", "12h"
// or "7d". A bare number is taken as seconds.
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty lifetime")
	}

	unit := time.Second
	switch s[len(s)-1] {
	case 's':
		s = s[:len(s)-1]
	case 'm':
		unit = time.Minute
		s = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		s = s[:len(s)-1]
	case 'd':
		unit = 24 * time.Hour
		s = s[:len(s)-1]
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid lifetime %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("lifetime must be positive, got %d", n)
	}
	return time.Duration(n) * unit, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
