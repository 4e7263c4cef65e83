package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreBackend string

const (
	StoreSQLite StoreBackend = "sqlite"
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
	StoreMongo  StoreBackend = "mongo"
)

type Config struct {
	Env             string
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	DatabasePath string
	StoreBackend StoreBackend
	RedisURL     string
	RedisPrefix  string
	RedisTTL     time.Duration
	MongoURI     string
	MongoDBName  string

	KafkaBrokers []string
	KafkaTopic   string

	ToastDuration      time.Duration
	MockLatency        bool
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Load reads the environment, after loading an optional .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var errs []error
	cfg := Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second, &errs),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),

		DatabasePath: getEnv("DATABASE_PATH", "smartcart.db"),
		StoreBackend: StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(StoreSQLite)))),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:  getEnv("REDIS_PREFIX", "smartcart"),
		RedisTTL:     getDuration("REDIS_TTL", 0, &errs),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:  getEnv("MONGO_DB_NAME", "smartcart"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "orders.completed"),

		ToastDuration:      getDuration("TOAST_DURATION", 3*time.Second, &errs),
		MockLatency:        getBool("MOCK_LATENCY", true, &errs),
		BreakerMaxFailures: uint32(getInt("BREAKER_MAX_FAILURES", 5, &errs)),
		BreakerOpenTimeout: getDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second, &errs),
	}

	switch cfg.StoreBackend {
	case StoreSQLite, StoreMemory, StoreRedis, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.StoreBackend))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		*errs = append(*errs, fmt.Errorf("%s: must be a non-negative integer", key))
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
