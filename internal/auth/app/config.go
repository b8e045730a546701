package app

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer         string // Optional: issuer claim for tokens (default: bartab-accounts)
	Algorithm      string // Optional: JWT signing algorithm (ES256, EdDSA) (default: EdDSA)
	SigningKeyFile string // Optional: PEM file for the signing key, generated when missing. Empty keeps the key in memory
	PepperFile     string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	StoreDriver   string // Optional: credential store (sqlite, mongo) (default: sqlite)
	DatabaseFile  string // Optional: path to SQLite database file (default: ./auth.db)
	MongoURI      string // Required with the mongo driver
	MongoDatabase string // Optional: MongoDB database name (default: bartab)
	RedisURL      string // Optional: redis:// URL for OTPs, refresh tokens and counters (default: redis://localhost:6379/0)

	AccessTokenTTL  time.Duration // default: 1h
	RefreshTokenTTL time.Duration // default: 7d
	EmailTokenTTL   time.Duration // default: 1h
	ResetTokenTTL   time.Duration // default: 1h
	OTPTTL          time.Duration // default: 5m

	RegisterRateLimit  int           // Registrations allowed per IP per window (default: 5)
	RegisterRateWindow time.Duration // default: 1h
	LockoutThreshold   int           // Failed logins before the account locks (default: 5)
	LockoutWindow      time.Duration // Window the failures are counted in (default: 15m)
	LockoutDuration    time.Duration // How long a lock lasts (default: 15m)
	AdminEmails        []string      // Optional: addresses allowed to register with the Admin role (ADMIN_EMAILS, comma separated)

	SMTPHost    string // Optional: without it mail is only logged
	SMTPPort    int    // default: 587
	SMTPUser    string
	SMTPPass    string
	SMTPFrom    string
	FrontendURL string // Prefix for verify-email and reset-password links (default: http://localhost:3000)

	CookieSecure   bool   // Marks the refreshToken cookie Secure (default: true outside dev)
	TrustedProxies string // Optional: comma separated CIDRs or IPs whose X-Forwarded-For is believed (default: none)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	DeviceRetention      time.Duration // Unverified devices older than this are pruned (default: 30d)
}

// LoadConfig reads the environment, after loading a .env file if one is
// present in the working directory.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	env := getEnvOrDefault("ENV", "dev")
	cfg := Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "bartab-accounts"),
		Algorithm:      getEnvOrDefault("AUTH_ALGORITHM", "EdDSA"),
		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		PepperFile:     getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		StoreDriver:   getEnvOrDefault("AUTH_STORE_DRIVER", "sqlite"),
		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "bartab"),
		RedisURL:      getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		EmailTokenTTL:   getEnvDurationOrDefault("EMAIL_TOKEN_TTL", time.Hour),
		ResetTokenTTL:   getEnvDurationOrDefault("RESET_TOKEN_TTL", time.Hour),
		OTPTTL:          getEnvDurationOrDefault("OTP_EXPIRATION_TIME", 5*time.Minute),

		RegisterRateLimit:  getEnvIntOrDefault("REGISTER_RATE_LIMIT", 5),
		RegisterRateWindow: getEnvDurationOrDefault("REGISTER_RATE_WINDOW", time.Hour),
		LockoutThreshold:   getEnvIntOrDefault("LOCKOUT_THRESHOLD", 5),
		LockoutWindow:      getEnvDurationOrDefault("LOCKOUT_WINDOW", 15*time.Minute),
		LockoutDuration:    getEnvDurationOrDefault("LOCKOUT_DURATION", 15*time.Minute),
		AdminEmails:        getEnvListOrDefault("ADMIN_EMAILS", nil),

		SMTPHost:    os.Getenv("SMTP_HOST"),
		SMTPPort:    getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUser:    os.Getenv("SMTP_USER"),
		SMTPPass:    os.Getenv("SMTP_PASS"),
		SMTPFrom:    os.Getenv("SMTP_FROM"),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),

		CookieSecure:   getEnvBoolOrDefault("COOKIE_SECURE", env != "dev"),
		TrustedProxies: os.Getenv("TRUSTED_PROXIES"),

		Env:                  env,
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		DeviceRetention:      getEnvDurationOrDefault("DEVICE_RETENTION", 30*24*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
