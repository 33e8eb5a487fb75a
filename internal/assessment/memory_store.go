package assessment

import (
	"context"
	"sync"
	"time"

	"github.com/hydroward/damtwin/internal/ciphertext"
)

// MemoryStore implements Store with in-memory storage. A single mutex
// orders register/consume/apply so no caller ever observes a
// partially-applied transition.
type MemoryStore struct {
	mu          sync.Mutex
	nextID      int64
	records     map[int64]*SensorRecord
	assessments map[int64]*Assessment
	byRequest   map[string]*PendingRequest // requestID → pending
	byRecord    map[int64]string           // recordID → live requestID
	order       []string                   // request registration order
}

// NewMemoryStore creates a new in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[int64]*SensorRecord),
		assessments: make(map[int64]*Assessment),
		byRequest:   make(map[string]*PendingRequest),
		byRecord:    make(map[int64]string),
	}
}

func (s *MemoryStore) CreateRecord(_ context.Context, rec *SensorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}

	cp := *rec
	s.records[rec.ID] = &cp
	s.assessments[rec.ID] = &Assessment{
		RecordID:    rec.ID,
		RiskScore:   ciphertext.Zero,
		WarningFlag: ciphertext.Zero,
	}
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, recordID int64) (*SensorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetAssessment(_ context.Context, recordID int64) (*Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) RegisterRequest(_ context.Context, req *PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[req.RecordID]
	if !ok {
		return ErrNotFound
	}
	if a.IsAssessed {
		return ErrAlreadyAssessed
	}
	if _, inFlight := s.byRecord[req.RecordID]; inFlight {
		return ErrRequestInFlight
	}

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	cp := *req
	s.byRequest[req.RequestID] = &cp
	s.byRecord[req.RecordID] = req.RequestID
	s.order = append(s.order, req.RequestID)
	return nil
}

func (s *MemoryStore) ConsumeRequest(_ context.Context, requestID string) (*PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.byRequest[requestID]
	if !ok {
		return nil, ErrUnknownRequest
	}
	delete(s.byRequest, requestID)
	delete(s.byRecord, req.RecordID)

	cp := *req
	return &cp, nil
}

func (s *MemoryStore) ApplyResult(_ context.Context, recordID int64, score, flag ciphertext.Handle, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assessments[recordID]
	if !ok {
		return ErrNotFound
	}
	if a.IsAssessed {
		return ErrAlreadyAssessed
	}

	a.RiskScore = score
	a.WarningFlag = flag
	a.IsAssessed = true
	a.AssessedAt = &at
	return nil
}

func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]*PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*PendingRequest
	for _, id := range s.order {
		req, ok := s.byRequest[id]
		if !ok {
			continue // consumed
		}
		cp := *req
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
