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

const defaultJWTSecret = "your-super-secret-key-change-in-production"

type Config struct {
	Port string

	DBDriver       string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	RedisAddress   string
	ReportCacheTTL time.Duration

	RequestTimeout time.Duration

	JWTSecret     string
	OwnerEmail    string
	OwnerPassword string

	LogLevel  string
	LogFormat string

	RateLimitMax    int
	RateLimitWindow time.Duration

	DefaultPhoneRegion string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}

	cfg := &Config{
		Port:               envString("PORT", "3000"),
		DBDriver:           strings.ToLower(envString("DB_DRIVER", "postgres")),
		DBMaxOpenConns:     envInt("DB_MAX_OPEN_CONNS", 100),
		DBMaxIdleConns:     envInt("DB_MAX_IDLE_CONNS", 10),
		RedisAddress:       os.Getenv("REDIS_ADDRESS"),
		ReportCacheTTL:     time.Duration(envInt("REPORT_CACHE_TTL_SECONDS", 30)) * time.Second,
		RequestTimeout:     time.Duration(envInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		JWTSecret:          envString("JWT_SECRET", ""),
		OwnerEmail:         envString("OWNER_EMAIL", "admin@example.com"),
		OwnerPassword:      envString("OWNER_PASSWORD", "admin123"),
		LogLevel:           envString("LOG_LEVEL", "info"),
		LogFormat:          envString("LOG_FORMAT", "json"),
		RateLimitMax:       envInt("RATE_LIMIT_MAX", 120),
		RateLimitWindow:    time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		DefaultPhoneRegion: envString("DEFAULT_PHONE_REGION", "BR"),
	}

	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = defaultJWTSecret
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDSN(cfg.DBDriver)
	}
	return cfg
}

func buildDSN(driver string) string {
	host := envString("DB_HOST", "localhost")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	name := envString("DB_NAME", "sigef")

	if driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
			user, password, host, envString("DB_PORT", "3306"), name)
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=America/Sao_Paulo",
		host, user, password, name, envString("DB_PORT", "5432"),
	)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
