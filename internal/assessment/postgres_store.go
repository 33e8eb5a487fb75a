package assessment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hydroward/damtwin/internal/ciphertext"
)

// PostgresStore implements Store with PostgreSQL.
//
// Exactly-once consume relies on DELETE ... RETURNING: concurrent
// deliveries of the same request id race on the row delete and only one
// wins. The UNIQUE constraint on pending_requests.record_id enforces the
// one-live-request-per-record invariant at the schema level.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed assessment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateRecord(ctx context.Context, rec *SensorRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if rec.SubmittedAt.IsZero() {
		rec.SubmittedAt = time.Now()
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sensor_records (sensor_id, seepage, deformation, pressure, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rec.SensorID, rec.Seepage.Hex(), rec.Deformation.Hex(), rec.Pressure.Hex(), rec.SubmittedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert sensor record: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assessments (record_id, risk_score, warning_flag, is_assessed)
		VALUES ($1, $2, $3, FALSE)
	`, rec.ID, ciphertext.Zero.Hex(), ciphertext.Zero.Hex())
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}

	return tx.Commit()
}

func (p *PostgresStore) GetRecord(ctx context.Context, recordID int64) (*SensorRecord, error) {
	var rec SensorRecord
	var seepage, deformation, pressure string

	err := p.db.QueryRowContext(ctx, `
		SELECT id, sensor_id, seepage, deformation, pressure, submitted_at
		FROM sensor_records WHERE id = $1
	`, recordID).Scan(&rec.ID, &rec.SensorID, &seepage, &deformation, &pressure, &rec.SubmittedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if rec.Seepage, err = ciphertext.Parse(seepage); err != nil {
		return nil, err
	}
	if rec.Deformation, err = ciphertext.Parse(deformation); err != nil {
		return nil, err
	}
	if rec.Pressure, err = ciphertext.Parse(pressure); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresStore) GetAssessment(ctx context.Context, recordID int64) (*Assessment, error) {
	var a Assessment
	var score, flag string

	err := p.db.QueryRowContext(ctx, `
		SELECT record_id, risk_score, warning_flag, is_assessed, assessed_at
		FROM assessments WHERE record_id = $1
	`, recordID).Scan(&a.RecordID, &score, &flag, &a.IsAssessed, &a.AssessedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if a.RiskScore, err = ciphertext.Parse(score); err != nil {
		return nil, err
	}
	if a.WarningFlag, err = ciphertext.Parse(flag); err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *PostgresStore) RegisterRequest(ctx context.Context, req *PendingRequest) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var isAssessed bool
	err = tx.QueryRowContext(ctx, `
		SELECT is_assessed FROM assessments WHERE record_id = $1 FOR UPDATE
	`, req.RecordID).Scan(&isAssessed)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if isAssessed {
		return ErrAlreadyAssessed
	}

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_requests (request_id, record_id, seepage_threshold, deformation_threshold, threshold_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.RequestID, req.RecordID, req.SeepageThreshold.Hex(), req.DeformationThreshold.Hex(), req.ThresholdVersion, req.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrRequestInFlight
		}
		return fmt.Errorf("insert pending request: %w", err)
	}

	return tx.Commit()
}

func (p *PostgresStore) ConsumeRequest(ctx context.Context, requestID string) (*PendingRequest, error) {
	var req PendingRequest
	var seepage, deformation string

	err := p.db.QueryRowContext(ctx, `
		DELETE FROM pending_requests WHERE request_id = $1
		RETURNING request_id, record_id, seepage_threshold, deformation_threshold, threshold_version, created_at
	`, requestID).Scan(&req.RequestID, &req.RecordID, &seepage, &deformation, &req.ThresholdVersion, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownRequest
	}
	if err != nil {
		return nil, err
	}

	if req.SeepageThreshold, err = ciphertext.Parse(seepage); err != nil {
		return nil, err
	}
	if req.DeformationThreshold, err = ciphertext.Parse(deformation); err != nil {
		return nil, err
	}
	return &req, nil
}

func (p *PostgresStore) ApplyResult(ctx context.Context, recordID int64, score, flag ciphertext.Handle, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE assessments
		SET risk_score = $1, warning_flag = $2, is_assessed = TRUE, assessed_at = $3
		WHERE record_id = $4 AND is_assessed = FALSE
	`, score.Hex(), flag.Hex(), at, recordID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the record does not exist or the assessment is terminal.
		var exists bool
		if err := p.db.QueryRowContext(ctx, `SELECT TRUE FROM assessments WHERE record_id = $1`, recordID).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return ErrAlreadyAssessed
	}
	return nil
}

func (p *PostgresStore) ListPending(ctx context.Context, limit int) ([]*PendingRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT request_id, record_id, seepage_threshold, deformation_threshold, threshold_version, created_at
		FROM pending_requests
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PendingRequest
	for rows.Next() {
		var req PendingRequest
		var seepage, deformation string
		if err := rows.Scan(&req.RequestID, &req.RecordID, &seepage, &deformation, &req.ThresholdVersion, &req.CreatedAt); err != nil {
			return nil, err
		}
		if req.SeepageThreshold, err = ciphertext.Parse(seepage); err != nil {
			return nil, err
		}
		if req.DeformationThreshold, err = ciphertext.Parse(deformation); err != nil {
			return nil, err
		}
		out = append(out, &req)
	}
	return out, rows.Err()
}
