package ciphertext

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	hex := "0x" + strings.Repeat("ab", HandleSize)

	h, err := Parse(hex)
	require.NoError(t, err)
	assert.Equal(t, hex, h.Hex())
	assert.False(t, h.IsZero())
}

func TestParse_ZeroHandle(t *testing.T) {
	h, err := Parse("0x" + strings.Repeat("00", HandleSize))
	require.NoError(t, err)
	assert.True(t, h.IsZero())
	assert.Equal(t, Zero, h)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no prefix", strings.Repeat("ab", HandleSize)},
		{"too short", "0xabcd"},
		{"too long", "0x" + strings.Repeat("ab", HandleSize+1)},
		{"not hex", "0x" + strings.Repeat("zz", HandleSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	hex := "0x" + strings.Repeat("cd", HandleSize)
	h, err := Parse(hex)
	require.NoError(t, err)

	data, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Equal(t, `"`+hex+`"`, string(data))

	var back Handle
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, h, back)

	assert.Error(t, json.Unmarshal([]byte(`"0x1234"`), &back))
	assert.Error(t, json.Unmarshal([]byte(`42`), &back))
}

func TestFromBytes(t *testing.T) {
	b := make([]byte, HandleSize)
	b[0] = 0x01

	h, err := FromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), h[0])

	_, err = FromBytes(b[:HandleSize-1])
	assert.ErrorIs(t, err, ErrMalformed)
}
