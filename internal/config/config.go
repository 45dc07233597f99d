package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Gateway Configuration
	Gateway GatewayConfig

	// Storage Configuration
	Storage StorageConfig

	// Redirect Configuration
	Redirect RedirectConfig

	// Password policy enforced locally by the flow screens
	PasswordMinLength int

	// Logging Configuration
	Logging LoggingConfig

	// Simulator Configuration (cmd/authsim only)
	Sim SimConfig
}

// GatewayConfig holds the auth API endpoint
type GatewayConfig struct {
	URL string
}

// StorageConfig selects the durable storage backend
type StorageConfig struct {
	Backend string // keyring, file, sqlite
	Dir     string // state directory for the file and sqlite backends
}

// RedirectConfig holds post-login redirect settings
type RedirectConfig struct {
	DefaultPath string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// SimConfig holds configuration for the auth simulator
type SimConfig struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	FixedCode   string // when set, every issued code equals this value
	// SweepSchedule is the cron expression for expired-record cleanup
	SweepSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	stateDir := os.Getenv("DISTCTL_STATE_DIR")
	if stateDir == "" {
		dir, err := DefaultStateDir()
		if err != nil {
			return nil, err
		}
		stateDir = dir
	}

	minLength := 8
	if raw := os.Getenv("DISTCTL_PASSWORD_MIN_LENGTH"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid DISTCTL_PASSWORD_MIN_LENGTH %q", raw)
		}
		minLength = n
	}

	return &Config{
		Gateway: GatewayConfig{
			URL: strings.TrimRight(os.Getenv("DISTCTL_GATEWAY_URL"), "/"),
		},
		Storage: StorageConfig{
			Backend: envOr("DISTCTL_STORAGE", "keyring"),
			Dir:     stateDir,
		},
		Redirect: RedirectConfig{
			DefaultPath: envOr("DISTCTL_DEFAULT_PATH", "/dashboard"),
		},
		PasswordMinLength: minLength,
		Logging: LoggingConfig{
			Level:  envOr("LOG_LEVEL", "warn"),
			Format: envOr("LOG_FORMAT", "console"),
		},
		Sim: SimConfig{
			Addr:          envOr("AUTHSIM_ADDR", ":8080"),
			DatabaseURL:   envOr("DATABASE_URL", "authsim.sqlite"),
			JWTSecret:     os.Getenv("AUTHSIM_JWT_SECRET"),
			FixedCode:     os.Getenv("AUTHSIM_FIXED_CODE"),
			SweepSchedule: os.Getenv("AUTHSIM_SWEEP_SCHEDULE"),
		},
	}, nil
}

// DefaultStateDir returns ~/.config/distctl
func DefaultStateDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "distctl"), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
