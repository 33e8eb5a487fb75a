package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0x1234567890123456789012345678901234567890"))
	assert.True(t, IsValidAddress("0xABCDEFabcdef1234567890123456789012345678"))

	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("1234567890123456789012345678901234567890"))
	assert.False(t, IsValidAddress("0x12345"))
	assert.False(t, IsValidAddress("0xZZ34567890123456789012345678901234567890"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "ab", SanitizeString("abcd", 2))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
	assert.Equal(t, "", SanitizeString("   ", 100))
}
