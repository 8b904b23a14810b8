package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by BELIEFMARKET_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("BELIEFMARKET_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// RidgeLambda is the regularisation added to the decomposition fit.
// Defaults to 1e-3.
func RidgeLambda() float64 {
	return positiveFloat("EPOCH_RIDGE_LAMBDA", 1e-3)
}

// QualityThreshold is the minimum decomposition quality in [0,1].
// Defaults to 0.3.
func QualityThreshold() float64 {
	q, err := strconv.ParseFloat(os.Getenv("EPOCH_QUALITY_THRESHOLD"), 64)
	if err != nil || q < 0 || q > 1 {
		return 0.3
	}
	return q
}

// FallbackAggregation enables the weighted-average aggregate when a
// decomposition is rejected for low quality. Off by default.
func FallbackAggregation() bool {
	on, err := strconv.ParseBool(os.Getenv("EPOCH_FALLBACK_AGGREGATION"))
	return err == nil && on
}

// EpochParallelism bounds how many beliefs are processed at once.
func EpochParallelism() int {
	return positiveInt("EPOCH_PARALLELISM", 4)
}

// LOOParallelism bounds the leave-one-out fan-out inside one decomposition.
func LOOParallelism() int {
	return positiveInt("LOO_PARALLELISM", 4)
}

// OTelExporterEndpoint is the OTLP/HTTP collector address. Empty disables
// tracing.
func OTelExporterEndpoint() string {
	return os.Getenv("OTEL_EXPORTER_ENDPOINT")
}

func MigrationsOnStart() bool {
	on, err := strconv.ParseBool(os.Getenv("MIGRATIONS_ON_START"))
	return err == nil && on
}

func positiveInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func positiveFloat(key string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
