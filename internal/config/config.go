package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Guard    GuardConfig
	Alert    AlertConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	RememberMeExpiry   time.Duration
}

// GuardConfig holds the login guard policy. Values are env-overridable so
// tests can exercise boundary thresholds without touching production
// defaults.
type GuardConfig struct {
	MaxFailedPerIP      int           // failed attempts per IP before auto-blacklist
	IPWindow            time.Duration // sliding window for the per-IP count
	BlockDuration       time.Duration // expiry for automatic blacklist entries
	MaxFailedPerAccount int           // consecutive failures before account lockout
	LockoutDuration     time.Duration // length of the account lockout
	LedgerRetention     time.Duration // ledger rows older than this are pruned
	CleanupInterval     time.Duration
}

type AlertConfig struct {
	Enabled         bool
	AWSRegion       string
	FromAddress     string
	SecurityAddress string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatekeeper"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: parseCSV(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 24*time.Hour),
			RememberMeExpiry:   getEnvAsDuration("REMEMBER_ME_EXPIRY", 30*24*time.Hour),
		},
		Guard: GuardConfig{
			MaxFailedPerIP:      getEnvAsInt("GUARD_MAX_FAILED_PER_IP", 30),
			IPWindow:            getEnvAsDuration("GUARD_IP_WINDOW", 1*time.Hour),
			BlockDuration:       getEnvAsDuration("GUARD_BLOCK_DURATION", 24*time.Hour),
			MaxFailedPerAccount: getEnvAsInt("GUARD_MAX_FAILED_PER_ACCOUNT", 5),
			LockoutDuration:     getEnvAsDuration("GUARD_LOCKOUT_DURATION", 15*time.Minute),
			LedgerRetention:     getEnvAsDuration("GUARD_LEDGER_RETENTION", 30*24*time.Hour),
			CleanupInterval:     getEnvAsDuration("GUARD_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Alert: AlertConfig{
			Enabled:         getEnvAsBool("ALERT_ENABLED", false),
			AWSRegion:       getEnv("ALERT_AWS_REGION", "us-east-1"),
			FromAddress:     getEnv("ALERT_FROM_ADDRESS", ""),
			SecurityAddress: getEnv("ALERT_SECURITY_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := validateGuardConfig(&cfg.Guard); err != nil {
		return nil, err
	}

	if cfg.Alert.Enabled && (cfg.Alert.FromAddress == "" || cfg.Alert.SecurityAddress == "") {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS and ALERT_SECURITY_ADDRESS are required when ALERT_ENABLED=true")
	}

	return cfg, nil
}

// validateGuardConfig rejects policy values that would disable the guard
// entirely or make it reject every request.
func validateGuardConfig(g *GuardConfig) error {
	if g.MaxFailedPerIP < 1 {
		return fmt.Errorf("GUARD_MAX_FAILED_PER_IP must be at least 1 (got %d)", g.MaxFailedPerIP)
	}
	if g.MaxFailedPerAccount < 1 {
		return fmt.Errorf("GUARD_MAX_FAILED_PER_ACCOUNT must be at least 1 (got %d)", g.MaxFailedPerAccount)
	}
	if g.IPWindow <= 0 {
		return fmt.Errorf("GUARD_IP_WINDOW must be positive")
	}
	if g.BlockDuration <= 0 {
		return fmt.Errorf("GUARD_BLOCK_DURATION must be positive")
	}
	if g.LockoutDuration <= 0 {
		return fmt.Errorf("GUARD_LOCKOUT_DURATION must be positive")
	}
	if g.LedgerRetention < g.IPWindow {
		return fmt.Errorf("GUARD_LEDGER_RETENTION must cover at least the IP window")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		return parseCSV(originsStr)
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
	}
}
