package maintenance

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory storage.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	byAsset map[string][]*Entry
}

// NewMemoryStore creates a new in-memory maintenance store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byAsset: make(map[string][]*Entry)}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e.ID = s.nextID
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}

	cp := *e
	s.byAsset[e.AssetID] = append(s.byAsset[e.AssetID], &cp)
	return nil
}

func (s *MemoryStore) History(_ context.Context, assetID string, limit int) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.byAsset[assetID]
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
