package thresholds

import (
	"context"
	"database/sql"

	"github.com/hydroward/damtwin/internal/ciphertext"
)

// PostgresStore implements Store with PostgreSQL. The singleton lives in a
// single row guarded by a CHECK (id = 1) constraint.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed threshold store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Initialize(ctx context.Context, seepage, deformation ciphertext.Handle) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO safety_thresholds (id, seepage, deformation, version, updated_at)
		VALUES (1, $1, $2, 1, NOW())
		ON CONFLICT (id) DO NOTHING
	`, seepage.Hex(), deformation.Hex())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyInitialized
	}
	return nil
}

func (p *PostgresStore) Replace(ctx context.Context, seepage, deformation ciphertext.Handle) (*Snapshot, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE safety_thresholds
		SET seepage = $1, deformation = $2, version = version + 1, updated_at = NOW()
		WHERE id = 1
		RETURNING seepage, deformation, version, updated_at
	`, seepage.Hex(), deformation.Hex())

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotInitialized
	}
	return snap, err
}

func (p *PostgresStore) Current(ctx context.Context) (*Snapshot, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT seepage, deformation, version, updated_at
		FROM safety_thresholds WHERE id = 1
	`)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotInitialized
	}
	return snap, err
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var snap Snapshot
	var seepageHex, deformHex string
	if err := row.Scan(&seepageHex, &deformHex, &snap.Version, &snap.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if snap.Seepage, err = ciphertext.Parse(seepageHex); err != nil {
		return nil, err
	}
	if snap.Deformation, err = ciphertext.Parse(deformHex); err != nil {
		return nil, err
	}
	return &snap, nil
}
