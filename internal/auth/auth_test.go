package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestOperatorSet(t *testing.T) {
	ctx := context.Background()
	set := NewOperatorSet([]string{
		"0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa",
		" 0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb ",
	})

	assert.True(t, set.IsOperator(ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.True(t, set.IsOperator(ctx, "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"))
	assert.True(t, set.IsOperator(ctx, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))

	assert.False(t, set.IsOperator(ctx, "0xcccccccccccccccccccccccccccccccccccccccc"))
	assert.False(t, set.IsOperator(ctx, ""))
}

func TestAllowAll(t *testing.T) {
	ctx := context.Background()
	assert.True(t, AllowAll{}.IsOperator(ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.False(t, AllowAll{}.IsOperator(ctx, ""))
}

func TestCallerAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid lowercased", "0xAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaaAAaa", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		{"missing", "", ""},
		{"malformed", "not-an-address", ""},
		{"short hex", "0x1234", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				c.Request.Header.Set(CallerHeader, tt.header)
			}
			assert.Equal(t, tt.want, CallerAddress(c))
		})
	}
}
