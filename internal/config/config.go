package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Session  SessionConfig
	Auth     AuthConfig
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

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	// AllowMissingOrigin admits requests that carry no Origin header.
	// Off by default: a missing origin is treated like an unlisted one.
	AllowMissingOrigin bool
	HSTS               bool
	TrustedProxies     []string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

type SessionConfig struct {
	Backend       string
	TTL           time.Duration
	SweepInterval time.Duration
	CookieSecure  bool
	CookieDomain  string
}

type AuthConfig struct {
	AccountBackend          string
	LockoutMaxAttempts      int
	LockoutWindow           time.Duration
	LoginRateLimitPerMinute int
	TimingDelayBaseMs       int
	TimingDelayRandomMs     int
	SeedAccounts            []SeedAccount
}

// SeedAccount is an account created at startup when it does not exist yet
type SeedAccount struct {
	Email    string
	Password string
	Role     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "restgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:               getEnv("PORT", "8443"),
			Env:                env,
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			AllowedOrigins:     parseAllowedOrigins(env),
			AllowMissingOrigin: getEnvAsBool("CORS_ALLOW_MISSING_ORIGIN", false),
			HSTS:               getEnvAsBool("HSTS_ENABLED", true),
			TrustedProxies:     splitList(getEnv("TRUSTED_PROXIES", "")),
			ReadTimeout:        getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:        getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Backend:       getEnv("SESSION_BACKEND", BackendMemory),
			TTL:           getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
			CookieSecure:  getEnvAsBool("COOKIE_SECURE", true),
			CookieDomain:  getEnv("COOKIE_DOMAIN", ""),
		},
		Auth: AuthConfig{
			AccountBackend:          getEnv("ACCOUNT_BACKEND", BackendMemory),
			LockoutMaxAttempts:      getEnvAsInt("LOCKOUT_MAX_ATTEMPTS", 10),
			LockoutWindow:           getEnvAsDuration("LOCKOUT_WINDOW", 10*time.Minute),
			LoginRateLimitPerMinute: getEnvAsInt("LOGIN_RATE_LIMIT_PER_MINUTE", 30),
			TimingDelayBaseMs:       getEnvAsInt("AUTH_TIMING_BASE_DELAY_MS", 0),
			TimingDelayRandomMs:     getEnvAsInt("AUTH_TIMING_RANDOM_DELAY_MS", 0),
		},
	}

	seeds, err := parseSeedAccounts(getEnv("SEED_ACCOUNTS", ""))
	if err != nil {
		return nil, err
	}
	cfg.Auth.SeedAccounts = seeds

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS is required in %s environment", c.Server.Env)
	}

	switch c.Auth.AccountBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required when ACCOUNT_BACKEND=%s", BackendPostgres)
		}
	default:
		return fmt.Errorf("ACCOUNT_BACKEND must be %q or %q (got %q)", BackendMemory, BackendPostgres, c.Auth.AccountBackend)
	}

	switch c.Session.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q (got %q)", BackendMemory, BackendRedis, c.Session.Backend)
	}

	if c.Auth.LockoutMaxAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1 (got %d)", c.Auth.LockoutMaxAttempts)
	}
	if c.Auth.LockoutWindow <= 0 {
		return fmt.Errorf("LOCKOUT_WINDOW must be positive")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	if c.Server.Env == "production" && !c.Session.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE cannot be disabled in production")
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

// splitList splits a comma separated value, trimming blanks around each entry
func splitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseAllowedOrigins(env string) []string {
	if origins := splitList(getEnv("ALLOWED_ORIGINS", "")); len(origins) > 0 {
		return origins
	}

	if env == "production" {
		return []string{}
	}

	// Development: the local front-end dev servers
	return []string{
		"http://localhost:9000",
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:9000",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}

// parseSeedAccounts reads "email:password:ROLE" triples separated by commas.
// The password is everything between the first and the last colon.
func parseSeedAccounts(value string) ([]SeedAccount, error) {
	seeds := make([]SeedAccount, 0)
	for _, entry := range splitList(value) {
		first := strings.Index(entry, ":")
		last := strings.LastIndex(entry, ":")
		if first <= 0 || last <= first+1 || last == len(entry)-1 {
			return nil, fmt.Errorf("SEED_ACCOUNTS entry must be email:password:ROLE")
		}
		seeds = append(seeds, SeedAccount{
			Email:    strings.ToLower(entry[:first]),
			Password: entry[first+1 : last],
			Role:     entry[last+1:],
		})
	}
	return seeds, nil
}
