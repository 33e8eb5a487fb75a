// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hydroward/damtwin/internal/ciphertext"
	"github.com/hydroward/damtwin/internal/validation"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Coprocessor
	CoprocessorURL    string // Endpoint that accepts computation payloads (optional in dev)
	CoprocessorSecret string // HMAC secret for signing outbound payloads
	CoprocessorSigner string // Address authorized to sign assessment callbacks (required)

	// Access control
	OperatorAddresses []string // Addresses holding operator capability (required)

	// Default encrypted thresholds, installed on first boot
	DefaultSeepageThreshold     string
	DefaultDeformationThreshold string

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

// Defaults
const (
	DefaultPort      = "8080"
	DefaultEnv       = "development"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                        getEnv("PORT", DefaultPort),
		Env:                         getEnv("ENV", DefaultEnv),
		LogLevel:                    getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:                   getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:                 os.Getenv("DATABASE_URL"),
		CoprocessorURL:              os.Getenv("COPROCESSOR_URL"),
		CoprocessorSecret:           os.Getenv("COPROCESSOR_SECRET"),
		CoprocessorSigner:           os.Getenv("COPROCESSOR_SIGNER"),
		OperatorAddresses:           splitList(os.Getenv("OPERATOR_ADDRESSES")),
		DefaultSeepageThreshold:     getEnv("DEFAULT_SEEPAGE_THRESHOLD", ciphertext.Zero.Hex()),
		DefaultDeformationThreshold: getEnv("DEFAULT_DEFORMATION_THRESHOLD", ciphertext.Zero.Hex()),
		OTLPEndpoint:                os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.CoprocessorSigner == "" {
		return fmt.Errorf("COPROCESSOR_SIGNER is required")
	}
	if !validation.IsValidAddress(c.CoprocessorSigner) {
		return fmt.Errorf("COPROCESSOR_SIGNER must be a 0x-prefixed 40-hex-char address")
	}

	if len(c.OperatorAddresses) == 0 {
		return fmt.Errorf("OPERATOR_ADDRESSES is required (comma-separated list)")
	}
	for _, addr := range c.OperatorAddresses {
		if !validation.IsValidAddress(addr) {
			return fmt.Errorf("invalid operator address %q", addr)
		}
	}

	if _, err := ciphertext.Parse(c.DefaultSeepageThreshold); err != nil {
		return fmt.Errorf("DEFAULT_SEEPAGE_THRESHOLD: %w", err)
	}
	if _, err := ciphertext.Parse(c.DefaultDeformationThreshold); err != nil {
		return fmt.Errorf("DEFAULT_DEFORMATION_THRESHOLD: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
