package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	// Common
	Env      string `env:"ENV" env-default:"local"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	// API
	Port         string   `env:"PORT" env-default:"8080"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	APIRateLimit string   `env:"API_RATE_LIMIT" env-default:"300-M"`
	Storage      string   `env:"STORAGE" env-default:"pg"`
	DatabaseURL  string   `env:"DATABASE_URL"`
	SQLitePath   string   `env:"SQLITE_PATH" env-default:"currency_rates.db"`
	// Sources
	Provider         string        `env:"PROVIDER" env-default:"live"`
	PrimaryAPIBase   string        `env:"PRIMARY_API_BASE" env-default:"https://yemenexchange.com"`
	SecondaryAPIBase string        `env:"SECONDARY_API_BASE" env-default:"https://api.exchangerate.host"`
	SecondaryAPIKey  string        `env:"SECONDARY_API_KEY"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" env-default:"5s"`
	// Reconciliation
	LockBackend string        `env:"LOCK_BACKEND" env-default:"local"`
	LockTTL     time.Duration `env:"LOCK_TTL" env-default:"10s"`
	// Worker
	AutoUpdateSchedule    string `env:"AUTO_UPDATE_SCHEDULE" env-default:"@every 30m"`
	AutoUpdateOnStart     bool   `env:"AUTO_UPDATE_ON_START" env-default:"true"`
	AutoUpdateConcurrency int    `env:"AUTO_UPDATE_CONCURRENCY" env-default:"4"`
	// Redis (idempotency, locks)
	IdempotencyBackend string        `env:"IDEMPOTENCY_BACKEND" env-default:"none"`
	RedisAddr          string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" env-default:"0"`
	RedisTTL           time.Duration `env:"IDEMPOTENCY_TTL" env-default:"24h"`
}

// UsesRedis reports whether any component needs a Redis client.
func (c Config) UsesRedis() bool {
	return c.IdempotencyBackend == "redis" || c.LockBackend == "redis"
}

// Load reads environment variables and applies defaults.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env config: %w", err)
	}
	return cfg, nil
}
