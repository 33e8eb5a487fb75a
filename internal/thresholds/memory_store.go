package thresholds

import (
	"context"
	"sync"
	"time"

	"github.com/hydroward/damtwin/internal/ciphertext"
)

// MemoryStore implements Store with in-memory storage.
type MemoryStore struct {
	mu   sync.RWMutex
	snap *Snapshot // nil until Initialize
}

// NewMemoryStore creates a new in-memory threshold store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Initialize(_ context.Context, seepage, deformation ciphertext.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap != nil {
		return ErrAlreadyInitialized
	}
	s.snap = &Snapshot{
		Seepage:     seepage,
		Deformation: deformation,
		Version:     1,
		UpdatedAt:   time.Now(),
	}
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, seepage, deformation ciphertext.Handle) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap == nil {
		return nil, ErrNotInitialized
	}
	s.snap = &Snapshot{
		Seepage:     seepage,
		Deformation: deformation,
		Version:     s.snap.Version + 1,
		UpdatedAt:   time.Now(),
	}
	cp := *s.snap
	return &cp, nil
}

func (s *MemoryStore) Current(_ context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil, ErrNotInitialized
	}
	cp := *s.snap
	return &cp, nil
}
