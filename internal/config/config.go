package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds runtime configuration for the execution service
type Config struct {
	Env   string
	Port  string
	Debug bool

	// Persistence
	DatabasePath string

	// Auth
	JWTSecret string

	// Execution reporting
	PricePrecision     int32
	ExecutionSource    string
	NotificationBuffer int

	// Commissions
	CommissionModel string
	CommissionRate  decimal.Decimal

	ShutdownTimeout time.Duration
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Env:                "development",
		Port:               "8080",
		DatabasePath:       "klear-exec.db",
		JWTSecret:          "klear-secret-key",
		PricePrecision:     8,
		ExecutionSource:    "klear-exec",
		NotificationBuffer: 256,
		CommissionModel:    "zero",
		CommissionRate:     decimal.Zero,
		ShutdownTimeout:    5 * time.Second,
	}
}

// Load reads an optional .env file and then overrides defaults from the
// environment. A missing .env file is not an error.
func Load(envPath string) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	def := Default()
	return Config{
		Env:                getenv("ENV", def.Env),
		Port:               getenv("PORT", def.Port),
		Debug:              strings.EqualFold(os.Getenv("DEBUG"), "true"),
		DatabasePath:       getenv("DATABASE_PATH", def.DatabasePath),
		JWTSecret:          getenv("JWT_SECRET", def.JWTSecret),
		PricePrecision:     int32(parseIntEnv("PRICE_PRECISION", int(def.PricePrecision))),
		ExecutionSource:    getenv("EXECUTION_SOURCE", def.ExecutionSource),
		NotificationBuffer: parseIntEnv("NOTIFY_BUFFER", def.NotificationBuffer),
		CommissionModel:    getenv("COMMISSION_MODEL", def.CommissionModel),
		CommissionRate:     parseDecimalEnv("COMMISSION_RATE", def.CommissionRate),
		ShutdownTimeout:    parseDurationEnv("SHUTDOWN_TIMEOUT", def.ShutdownTimeout),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseDecimalEnv(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return def
}
