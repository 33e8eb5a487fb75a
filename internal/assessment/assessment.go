// Package assessment implements the encrypted risk-assessment protocol.
//
// Lifecycle of one sensor record:
//
//  1. Operator submits an encrypted reading → record + zeroed assessment
//     are created together (Submitted).
//  2. Operator requests an assessment → a pending request is registered
//     with a threshold snapshot and the 5-handle payload is forwarded to
//     the coprocessor (Pending).
//  3. The coprocessor replies out-of-band with a signed result → the proof
//     is verified, the request is consumed exactly once, and the encrypted
//     score + warning flag are applied (Assessed, terminal).
//
// The pending-request table is the replay guard: a request id is honored by
// at most one delivery, and a replayed or forged id is rejected with no
// signal about which case occurred.
package assessment

import (
	"context"
	"errors"
	"time"

	"github.com/hydroward/damtwin/internal/ciphertext"
)

// Errors
var (
	ErrInvalidInput    = errors.New("assessment: invalid input")
	ErrUnauthorized    = errors.New("assessment: caller lacks operator capability")
	ErrNotFound        = errors.New("assessment: record not found")
	ErrAlreadyAssessed = errors.New("assessment: record already assessed")
	ErrRequestInFlight = errors.New("assessment: assessment request already in flight for record")
	ErrUnknownRequest  = errors.New("assessment: unknown or already-consumed request id")
	ErrInvalidProof    = errors.New("assessment: callback proof verification failed")
)

// SensorRecord is one encrypted sensor reading. Ciphertext fields are
// immutable after creation; only the paired Assessment ever changes.
type SensorRecord struct {
	ID          int64             `json:"id"`
	SensorID    string            `json:"sensorId"`
	Seepage     ciphertext.Handle `json:"encryptedSeepage"`
	Deformation ciphertext.Handle `json:"encryptedDeformation"`
	Pressure    ciphertext.Handle `json:"encryptedPressure"`
	SubmittedAt time.Time         `json:"submittedAt"`
}

// Assessment is the 1:1 companion of a SensorRecord. IsAssessed is
// monotone: it flips false→true exactly once, at the same instant the
// score and flag are written.
type Assessment struct {
	RecordID    int64             `json:"recordId"`
	RiskScore   ciphertext.Handle `json:"encryptedRiskScore"`
	WarningFlag ciphertext.Handle `json:"warningFlag"`
	IsAssessed  bool              `json:"isAssessed"`
	AssessedAt  *time.Time        `json:"assessedAt,omitempty"`
}

// PendingRequest tracks one outstanding coprocessor computation. The
// threshold fields are the snapshot captured at registration time.
type PendingRequest struct {
	RequestID            string            `json:"requestId"`
	RecordID             int64             `json:"recordId"`
	SeepageThreshold     ciphertext.Handle `json:"seepageThreshold"`
	DeformationThreshold ciphertext.Handle `json:"deformationThreshold"`
	ThresholdVersion     int64             `json:"thresholdVersion"`
	CreatedAt            time.Time         `json:"createdAt"`
}

// Payload is the computation request forwarded to the coprocessor: the
// three sensor ciphertexts plus the thresholds snapshotted at registration.
type Payload struct {
	RequestID            string            `json:"requestId"`
	Seepage              ciphertext.Handle `json:"encryptedSeepage"`
	Deformation          ciphertext.Handle `json:"encryptedDeformation"`
	Pressure             ciphertext.Handle `json:"encryptedPressure"`
	SeepageThreshold     ciphertext.Handle `json:"encryptedSeepageThreshold"`
	DeformationThreshold ciphertext.Handle `json:"encryptedDeformationThreshold"`
}

// Store persists records, assessments, and pending requests.
//
// RegisterRequest and ConsumeRequest carry the protocol's correctness
// guarantees and must be atomic with respect to each other: at most one
// live request per record, and each request id consumed at most once.
type Store interface {
	// CreateRecord assigns the next monotone record id and atomically
	// creates the paired zeroed Assessment.
	CreateRecord(ctx context.Context, rec *SensorRecord) error
	GetRecord(ctx context.Context, recordID int64) (*SensorRecord, error)
	GetAssessment(ctx context.Context, recordID int64) (*Assessment, error)

	// RegisterRequest stores req after checking the record's state:
	// ErrNotFound for an unknown record, ErrAlreadyAssessed when the
	// assessment is terminal, ErrRequestInFlight when a live request
	// already exists for the record.
	RegisterRequest(ctx context.Context, req *PendingRequest) error

	// ConsumeRequest removes the pending request and returns it.
	// ErrUnknownRequest covers both replay and forgery, identically.
	ConsumeRequest(ctx context.Context, requestID string) (*PendingRequest, error)

	// ApplyResult writes the verified score and flag and flips IsAssessed.
	// ErrAlreadyAssessed if the assessment is already terminal.
	ApplyResult(ctx context.Context, recordID int64, score, flag ciphertext.Handle, at time.Time) error

	// ListPending returns outstanding requests, oldest first. There is no
	// expiry path; this is the visibility hook for external automation.
	ListPending(ctx context.Context, limit int) ([]*PendingRequest, error)
}

// Channel forwards computation payloads to the external coprocessor.
type Channel interface {
	Compute(ctx context.Context, p *Payload) error
}

// ProofVerifier validates that a callback result was produced by the
// authorized coprocessor for a specific request id.
type ProofVerifier interface {
	Verify(requestID string, score, flag ciphertext.Handle, warning bool, proof string) error
}
