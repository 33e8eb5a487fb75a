package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		logger := New(level, "text")
		assert.NotNil(t, logger, "level %s", level)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	logger := New("info", "json")
	assert.NotNil(t, logger)
}

func TestRequestID_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "abc-123")
	assert.Equal(t, "abc-123", RequestID(ctx))
}

func TestFromContext_Default(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestL_IncludesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc-123")
	assert.NotNil(t, L(ctx))
}
