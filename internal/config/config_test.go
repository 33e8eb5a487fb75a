package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func validEnv(t *testing.T) {
	t.Helper()
	setEnv(t, "COPROCESSOR_SIGNER", "0x1234567890123456789012345678901234567890")
	setEnv(t, "OPERATOR_ADDRESSES", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	setEnv(t, "DEFAULT_SEEPAGE_THRESHOLD", "")
	setEnv(t, "DEFAULT_DEFORMATION_THRESHOLD", "")
}

func TestLoad_WithValidConfig(t *testing.T) {
	validEnv(t)
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, []string{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, cfg.OperatorAddresses)
}

func TestLoad_MissingSigner(t *testing.T) {
	validEnv(t)
	setEnv(t, "COPROCESSOR_SIGNER", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "COPROCESSOR_SIGNER is required")
}

func TestLoad_InvalidSigner(t *testing.T) {
	validEnv(t)
	setEnv(t, "COPROCESSOR_SIGNER", "not-an-address")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "COPROCESSOR_SIGNER must be")
}

func TestLoad_MissingOperators(t *testing.T) {
	validEnv(t)
	setEnv(t, "OPERATOR_ADDRESSES", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "OPERATOR_ADDRESSES is required")
}

func TestLoad_OperatorListParsing(t *testing.T) {
	validEnv(t)
	setEnv(t, "OPERATOR_ADDRESSES", " 0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa , 0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Len(t, cfg.OperatorAddresses, 2)
}

func TestLoad_InvalidDefaultThreshold(t *testing.T) {
	validEnv(t)
	setEnv(t, "DEFAULT_SEEPAGE_THRESHOLD", "0x1234")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_SEEPAGE_THRESHOLD")
}

func TestConfig_EnvHelpers(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.True(t, cfg.IsProduction())
}
