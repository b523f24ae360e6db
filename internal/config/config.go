// Package config reads service settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN builds a libpq-compatible connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Config is the full service configuration.
type Config struct {
	Port            string
	Storage         string
	ShutdownTimeout time.Duration
	DB              Database

	// MaxStayDays bounds the nights of one assignment.
	MaxStayDays int
	// MaxQueryDays bounds the date window of occupancy and listing queries.
	MaxQueryDays int
}

// Load reads .env (if present) and then the process environment, falling
// back to local-development defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:    getEnv("PORT", "8080"),
		Storage: getEnv("STORAGE", StoragePostgres),
		DB: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "dormitory"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}

	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "20"), 10, 32)
	if err != nil || maxConns < 1 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be a positive integer")
	}
	cfg.DB.MaxConns = int32(maxConns)

	cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err)
	}

	if cfg.MaxStayDays, err = positiveInt("MAX_STAY_DAYS", "366"); err != nil {
		return Config{}, err
	}
	if cfg.MaxQueryDays, err = positiveInt("MAX_QUERY_DAYS", "366"); err != nil {
		return Config{}, err
	}

	switch cfg.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return Config{}, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}
	return cfg, nil
}

func positiveInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
