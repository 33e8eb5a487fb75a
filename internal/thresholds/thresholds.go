// Package thresholds holds the encrypted safety thresholds used for risk
// comparison.
//
// The thresholds are a versioned singleton: initialized once at system
// start, replaced atomically by authorized operators, and snapshotted into
// every outgoing computation payload at request time. A later update never
// retroactively changes a pending or completed assessment — callers copy
// the snapshot, they never re-read live values at callback time.
package thresholds

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hydroward/damtwin/internal/auth"
	"github.com/hydroward/damtwin/internal/ciphertext"
)

var (
	ErrAlreadyInitialized = errors.New("thresholds: already initialized")
	ErrNotInitialized     = errors.New("thresholds: not initialized")
	ErrUnauthorized       = errors.New("thresholds: caller lacks operator capability")
)

// Snapshot is an immutable view of the thresholds at one version.
type Snapshot struct {
	Seepage     ciphertext.Handle `json:"encryptedSeepageThreshold"`
	Deformation ciphertext.Handle `json:"encryptedDeformationThreshold"`
	Version     int64             `json:"version"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Store persists the threshold singleton.
type Store interface {
	// Initialize installs the first threshold pair at version 1.
	// Fails with ErrAlreadyInitialized on any later call.
	Initialize(ctx context.Context, seepage, deformation ciphertext.Handle) error
	// Replace atomically installs a new pair and bumps the version.
	Replace(ctx context.Context, seepage, deformation ciphertext.Handle) (*Snapshot, error)
	// Current returns the live snapshot without blocking on writers.
	Current(ctx context.Context) (*Snapshot, error)
}

// Service wraps the store with the operator capability check.
type Service struct {
	store  Store
	auth   auth.Authorizer
	logger *slog.Logger
}

// NewService creates a threshold service.
func NewService(store Store, authorizer auth.Authorizer, logger *slog.Logger) *Service {
	return &Service{store: store, auth: authorizer, logger: logger}
}

// Initialize installs the boot-time defaults. Called by the server at
// startup, before any request is served; not operator-gated.
func (s *Service) Initialize(ctx context.Context, seepage, deformation ciphertext.Handle) error {
	return s.store.Initialize(ctx, seepage, deformation)
}

// Update replaces both thresholds. Requires operator capability.
func (s *Service) Update(ctx context.Context, caller string, seepage, deformation ciphertext.Handle) (*Snapshot, error) {
	if !s.auth.IsOperator(ctx, caller) {
		return nil, ErrUnauthorized
	}
	snap, err := s.store.Replace(ctx, seepage, deformation)
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("safety thresholds updated", "version", snap.Version, "by", caller)
	}
	return snap, nil
}

// Current returns the live snapshot.
func (s *Service) Current(ctx context.Context) (*Snapshot, error) {
	return s.store.Current(ctx)
}
