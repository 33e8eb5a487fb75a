// Package proof verifies coprocessor callback proofs.
//
// The coprocessor signs every callback result with its ECDSA key. The
// verifier is keyed to exactly one authorized signer address, supplied at
// construction — the trusted identity is configuration, never a constant.
package proof

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hydroward/damtwin/internal/ciphertext"
)

var (
	// ErrInvalidProof is returned when a proof fails to authenticate the
	// callback payload against the authorized signer.
	ErrInvalidProof = errors.New("proof: verification failed")
)

// Verifier validates that a callback result was produced by the authorized
// coprocessor for a specific request id.
type Verifier interface {
	Verify(requestID string, score, flag ciphertext.Handle, warning bool, proof string) error
}

// Message builds the canonical message covered by a callback proof.
// Format: "DamTwin|{requestId}|{scoreHex}|{flagHex}|{warning}"
func Message(requestID string, score, flag ciphertext.Handle, warning bool) string {
	return fmt.Sprintf("DamTwin|%s|%s|%s|%t", requestID, score.Hex(), flag.Hex(), warning)
}

// HashMessage creates an Ethereum signed message hash per EIP-191.
func HashMessage(message string) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return crypto.Keccak256([]byte(prefix + message))
}

// Sign produces a hex-encoded proof for a callback payload. Used by the
// coprocessor side (and test doubles); the service itself only verifies.
func Sign(requestID string, score, flag ciphertext.Handle, warning bool, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(HashMessage(Message(requestID, score, flag, warning)), key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// ECDSAVerifier verifies proofs via signature recovery against a single
// authorized signer address.
type ECDSAVerifier struct {
	signer common.Address
}

// NewECDSAVerifier creates a verifier keyed to the given signer address.
func NewECDSAVerifier(signerHex string) (*ECDSAVerifier, error) {
	if !common.IsHexAddress(signerHex) {
		return nil, fmt.Errorf("proof: invalid signer address %q", signerHex)
	}
	return &ECDSAVerifier{signer: common.HexToAddress(signerHex)}, nil
}

// Signer returns the authorized signer address.
func (v *ECDSAVerifier) Signer() common.Address {
	return v.signer
}

// Verify checks that proof is a valid signature by the authorized signer
// over the callback payload. It performs no state changes and gives the
// same error for every failure mode.
func (v *ECDSAVerifier) Verify(requestID string, score, flag ciphertext.Handle, warning bool, proof string) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(proof, "0x"))
	if err != nil {
		return ErrInvalidProof
	}
	if len(sig) != 65 {
		return ErrInvalidProof
	}

	// Ethereum signatures carry v = 27 or 28; Ecrecover expects 0 or 1.
	// Work on a copy so the caller's payload is never mutated.
	sigCopy := make([]byte, 65)
	copy(sigCopy, sig)
	if sigCopy[64] >= 27 {
		sigCopy[64] -= 27
	}

	hash := HashMessage(Message(requestID, score, flag, warning))
	pubBytes, err := crypto.Ecrecover(hash, sigCopy)
	if err != nil {
		return ErrInvalidProof
	}
	pub, err := crypto.UnmarshalPubkey(pubBytes)
	if err != nil {
		return ErrInvalidProof
	}
	if crypto.PubkeyToAddress(*pub) != v.signer {
		return ErrInvalidProof
	}
	return nil
}
