package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hydroward/damtwin/internal/validation"
)

// CallerHeader carries the operator identity asserted by the deployment layer.
const CallerHeader = "X-Operator-Address"

// CallerAddress extracts and normalizes the caller address from the request.
// Returns "" when the header is absent or not a well-formed address, which
// downstream capability checks treat as unauthorized.
func CallerAddress(c *gin.Context) string {
	addr := strings.TrimSpace(c.GetHeader(CallerHeader))
	if !validation.IsValidAddress(addr) {
		return ""
	}
	return strings.ToLower(addr)
}
