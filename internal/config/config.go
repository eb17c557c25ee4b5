package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Durations are given in seconds or minutes
// as noted; identifiers and secrets are strings.
type Config struct {
	Env               string        // application environment (e.g. "dev", "prod")
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	DBMaxOpen         int           // max open connections in the pool
	DBMaxIdle         int           // max idle connections kept in the pool
	DBConnLifetime    time.Duration // how long a pooled connection may live
	JWTSecret         string        // secret used to verify bearer tokens
	HoldTTL           time.Duration // how long a seat hold stays pending
	SweepInterval     time.Duration // how often the expiration sweeper runs
	SweepBatch        int           // max reservations reclaimed per sweep
	PaymentGatewayURL string        // base URL of the payment gateway
	AMQPURL           string        // message broker URL (optional; env fallbacks apply)
}

// Load reads configuration values from the environment and returns a
// Config.  A .env file in the working directory is honored when
// present.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // optional; real environments set vars directly
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		DBMaxOpen:         intDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdle:         intDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnLifetime:    time.Duration(intDefault("DB_CONN_LIFETIME_MIN", 30)) * time.Minute,
		JWTSecret:         must("JWT_SECRET"),
		HoldTTL:           time.Duration(intDefault("HOLD_TTL_MIN", 5)) * time.Minute,
		SweepInterval:     time.Duration(intDefault("SWEEP_INTERVAL_SEC", 30)) * time.Second,
		SweepBatch:        intDefault("SWEEP_BATCH", 100),
		PaymentGatewayURL: must("PAYMENT_GATEWAY_URL"),
		AMQPURL:           os.Getenv("RABBITMQ_URL"), // empty falls back inside the loyalty package
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intDefault reads an integer environment variable, falling back to the
// given default when unset.  Invalid values are fatal: a typo in a TTL
// should not silently produce a zero-duration hold.
func intDefault(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
