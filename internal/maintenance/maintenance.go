// Package maintenance keeps the append-only maintenance ledger for dam
// assets. Entries are never edited or deleted; history reads back in the
// order it was written.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hydroward/damtwin/internal/auth"
	"github.com/hydroward/damtwin/internal/events"
	"github.com/hydroward/damtwin/internal/validation"
)

var (
	ErrInvalidInput = errors.New("maintenance: invalid input")
	ErrUnauthorized = errors.New("maintenance: caller lacks operator capability")
)

// Entry is one immutable maintenance record for an asset.
type Entry struct {
	ID         int64     `json:"id"`
	AssetID    string    `json:"assetId"`
	Action     string    `json:"action"`
	RecordedBy string    `json:"recordedBy"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Store persists the ledger.
type Store interface {
	// Append adds an entry and assigns its ID. Entries are never updated.
	Append(ctx context.Context, e *Entry) error
	// History returns an asset's entries oldest-first.
	History(ctx context.Context, assetID string, limit int) ([]*Entry, error)
}

// Service wraps the store with capability checks and input hygiene.
type Service struct {
	store   Store
	auth    auth.Authorizer
	emitter *events.Emitter
	logger  *slog.Logger
}

// NewService creates a maintenance service.
func NewService(store Store, authorizer auth.Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, auth: authorizer, logger: logger}
}

// WithEmitter sets the domain event emitter.
func (s *Service) WithEmitter(em *events.Emitter) *Service {
	s.emitter = em
	return s
}

// Record appends a maintenance action for an asset. Requires operator
// capability; the caller address is recorded as the author.
func (s *Service) Record(ctx context.Context, caller, assetID, action string) (*Entry, error) {
	if !s.auth.IsOperator(ctx, caller) {
		return nil, ErrUnauthorized
	}

	assetID = strings.TrimSpace(assetID)
	if len(action) > validation.MaxActionLength {
		return nil, ErrInvalidInput
	}
	action = validation.SanitizeString(action, validation.MaxActionLength)
	if assetID == "" || action == "" {
		return nil, ErrInvalidInput
	}

	e := &Entry{
		AssetID:    assetID,
		Action:     action,
		RecordedBy: caller,
		RecordedAt: time.Now(),
	}
	if err := s.store.Append(ctx, e); err != nil {
		return nil, err
	}

	s.emitter.MaintenanceRecorded(assetID, e.ID, caller)
	s.logger.Info("maintenance recorded", "asset_id", assetID, "entry_id", e.ID, "by", caller)
	return e, nil
}

// History returns an asset's ledger oldest-first. Read access is not
// operator-gated.
func (s *Service) History(ctx context.Context, assetID string, limit int) ([]*Entry, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, ErrInvalidInput
	}
	return s.store.History(ctx, assetID, limit)
}
