package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable: strings for identifiers and secrets, ints and
// durations for limits and lifetimes.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret signing session JWTs and lifecycle tokens
	AccessTTLMin   int           // access token time-to-live in minutes
	RefreshTTLDays int           // refresh token time-to-live in days
	BcryptCost     int           // bcrypt cost for password hashing
	ConfirmTTL     time.Duration // confirmation token lifetime
	ResetTTL       time.Duration // password reset token lifetime
	ChangeTTL      time.Duration // email change token lifetime
	InviteTTL      time.Duration // invitation token lifetime
	BaseURL        string        // public base URL embedded in emailed links (optional)
}

// Load reads configuration from environment variables. Required variables
// are enforced by must() and missing values exit with a fatal log message;
// token lifetimes fall back to sensible defaults.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		ConfirmTTL:     envDur("CONFIRM_TOKEN_TTL", 24*time.Hour),
		ResetTTL:       envDur("RESET_TOKEN_TTL", time.Hour),
		ChangeTTL:      envDur("EMAIL_CHANGE_TOKEN_TTL", time.Hour),
		InviteTTL:      envDur("INVITE_TOKEN_TTL", 7*24*time.Hour),
		BaseURL:        os.Getenv("APP_BASE_URL"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
