package assessment

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hydroward/damtwin/internal/auth"
	"github.com/hydroward/damtwin/internal/ciphertext"
	"github.com/hydroward/damtwin/internal/events"
	"github.com/hydroward/damtwin/internal/idgen"
	"github.com/hydroward/damtwin/internal/metrics"
	"github.com/hydroward/damtwin/internal/thresholds"
	"github.com/hydroward/damtwin/internal/traces"
)

// Service orchestrates the risk-assessment state machine.
type Service struct {
	store      Store
	thresholds *thresholds.Service
	verifier   ProofVerifier
	channel    Channel // nil = payloads are not forwarded (tests, replay)
	auth       auth.Authorizer
	emitter    *events.Emitter
	logger     *slog.Logger

	// mu serializes register/deliver transitions. Every externally
	// triggered operation runs to completion before the next is observed;
	// this is what makes a callback racing a re-request impossible.
	mu sync.Mutex
}

// NewService creates the assessment service.
func NewService(store Store, th *thresholds.Service, verifier ProofVerifier, authorizer auth.Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		thresholds: th,
		verifier:   verifier,
		auth:       authorizer,
		logger:     logger,
	}
}

// WithChannel sets the coprocessor channel for outbound payloads.
func (s *Service) WithChannel(ch Channel) *Service {
	s.channel = ch
	return s
}

// WithEmitter sets the domain event emitter.
func (s *Service) WithEmitter(em *events.Emitter) *Service {
	s.emitter = em
	return s
}

// Submit stores an encrypted sensor reading and its zeroed assessment.
// Requires operator capability.
func (s *Service) Submit(ctx context.Context, caller, sensorID string, seepage, deformation, pressure ciphertext.Handle) (int64, error) {
	ctx, span := traces.StartSpan(ctx, "assessment.Submit")
	defer span.End()

	if !s.auth.IsOperator(ctx, caller) {
		return 0, ErrUnauthorized
	}
	if strings.TrimSpace(sensorID) == "" {
		return 0, ErrInvalidInput
	}

	rec := &SensorRecord{
		SensorID:    sensorID,
		Seepage:     seepage,
		Deformation: deformation,
		Pressure:    pressure,
		SubmittedAt: time.Now(),
	}
	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return 0, err
	}

	metrics.SubmissionsTotal.Inc()
	s.emitter.SensorDataReceived(rec.ID, sensorID)
	s.logger.Info("sensor reading stored", "record_id", rec.ID, "sensor_id", sensorID)
	return rec.ID, nil
}

// RequestAssessment registers a pending computation for the record and
// forwards the payload to the coprocessor. Returns the issued request id.
// The call never blocks on the coprocessor: forwarding is fire-and-forget
// and the reply arrives later as an independent DeliverAssessment call.
func (s *Service) RequestAssessment(ctx context.Context, caller string, recordID int64) (string, error) {
	ctx, span := traces.StartSpan(ctx, "assessment.RequestAssessment", traces.RecordID(recordID))
	defer span.End()

	if !s.auth.IsOperator(ctx, caller) {
		return "", ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return "", err
	}

	// Capture the thresholds now; a later update must not change the
	// semantics of this in-flight assessment.
	snap, err := s.thresholds.Current(ctx)
	if err != nil {
		return "", err
	}

	req := &PendingRequest{
		RequestID:            idgen.WithPrefix("req_"),
		RecordID:             recordID,
		SeepageThreshold:     snap.Seepage,
		DeformationThreshold: snap.Deformation,
		ThresholdVersion:     snap.Version,
		CreatedAt:            time.Now(),
	}
	if err := s.store.RegisterRequest(ctx, req); err != nil {
		return "", err
	}

	payload := &Payload{
		RequestID:            req.RequestID,
		Seepage:              rec.Seepage,
		Deformation:          rec.Deformation,
		Pressure:             rec.Pressure,
		SeepageThreshold:     req.SeepageThreshold,
		DeformationThreshold: req.DeformationThreshold,
	}
	s.forward(payload)

	metrics.AssessmentsRequestedTotal.Inc()
	metrics.PendingRequests.Inc()
	s.emitter.AssessmentRequested(recordID, req.RequestID, req.ThresholdVersion)
	s.logger.Info("assessment requested",
		"record_id", recordID,
		"request_id", req.RequestID,
		"threshold_version", req.ThresholdVersion,
	)
	return req.RequestID, nil
}

// forward dispatches the payload to the coprocessor without blocking the
// caller. Delivery failures are logged; retry policy belongs to the
// surrounding automation, never to the core.
func (s *Service) forward(p *Payload) {
	if s.channel == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.channel.Compute(ctx, p); err != nil {
			s.logger.Warn("coprocessor dispatch failed", "request_id", p.RequestID, "error", err)
		}
	}()
}

// DeliverAssessment is the callback entry point for the coprocessor's
// signed result. Order is strict: the proof is verified before any state
// is touched, then the request is consumed exactly once, then the result
// is applied atomically. InvalidProof and UnknownRequest leave identical
// (empty) side effects so a probing caller learns nothing from the
// difference.
func (s *Service) DeliverAssessment(ctx context.Context, requestID string, score, flag ciphertext.Handle, warning bool, proof string) error {
	ctx, span := traces.StartSpan(ctx, "assessment.DeliverAssessment", traces.RequestID(requestID))
	defer span.End()

	if err := s.verifier.Verify(requestID, score, flag, warning, proof); err != nil {
		metrics.AssessmentDeliveriesTotal.WithLabelValues("invalid_proof").Inc()
		s.logger.Warn("callback rejected: invalid proof", "request_id", requestID)
		return ErrInvalidProof
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.ConsumeRequest(ctx, requestID)
	if err != nil {
		metrics.AssessmentDeliveriesTotal.WithLabelValues("unknown_request").Inc()
		s.logger.Warn("callback rejected: unknown request", "request_id", requestID)
		return err
	}

	now := time.Now()
	if err := s.store.ApplyResult(ctx, req.RecordID, score, flag, now); err != nil {
		metrics.AssessmentDeliveriesTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.AssessmentDeliveriesTotal.WithLabelValues("assessed").Inc()
	metrics.PendingRequests.Dec()

	if warning {
		metrics.RiskWarningsTotal.Inc()
		s.emitter.RiskWarning(req.RecordID, requestID)
		s.logger.Warn("risk warning generated", "record_id", req.RecordID, "request_id", requestID)
	} else {
		s.emitter.AssessmentCompleted(req.RecordID, requestID)
		s.logger.Info("assessment completed", "record_id", req.RecordID, "request_id", requestID)
	}
	return nil
}

// GetRecord returns the immutable sensor record.
func (s *Service) GetRecord(ctx context.Context, recordID int64) (*SensorRecord, error) {
	return s.store.GetRecord(ctx, recordID)
}

// GetAssessment returns the current assessment state for a record.
func (s *Service) GetAssessment(ctx context.Context, recordID int64) (*Assessment, error) {
	return s.store.GetAssessment(ctx, recordID)
}

// ListPending exposes outstanding requests for external automation. There
// is deliberately no cancel or expiry operation in the core.
func (s *Service) ListPending(ctx context.Context, limit int) ([]*PendingRequest, error) {
	return s.store.ListPending(ctx, limit)
}
