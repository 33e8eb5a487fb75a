// Package ciphertext defines the opaque handle type for encrypted values.
//
// A handle references a ciphertext held by the external homomorphic
// coprocessor. This service stores, copies, and forwards handles; it never
// decrypts them or interprets their bytes. The all-zero handle is the
// canonical placeholder for "ciphertext of zero / false" on freshly created
// records.
package ciphertext

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HandleSize is the fixed byte length of a ciphertext handle.
const HandleSize = 32

// ErrMalformed is returned when a wire value is not a valid handle.
var ErrMalformed = errors.New("ciphertext: malformed handle")

// Handle is a fixed-size opaque ciphertext reference.
type Handle [HandleSize]byte

// Zero is the canonical zero/false ciphertext handle.
var Zero Handle

// Parse decodes a 0x-prefixed hex string into a Handle.
// The input must decode to exactly HandleSize bytes.
func Parse(s string) (Handle, error) {
	var h Handle
	b, err := hexutil.Decode(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(b) != HandleSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformed, HandleSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// FromBytes builds a Handle from a raw byte slice of exactly HandleSize bytes.
func FromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformed, HandleSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hex returns the 0x-prefixed hex encoding of the handle.
func (h Handle) Hex() string {
	return hexutil.Encode(h[:])
}

// IsZero reports whether the handle is the canonical zero handle.
func (h Handle) IsZero() bool {
	return h == Zero
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	return h.Hex()
}

// MarshalJSON encodes the handle as a 0x-prefixed hex string.
func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Hex())
}

// UnmarshalJSON decodes a 0x-prefixed hex string into the handle.
func (h *Handle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrMalformed
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
