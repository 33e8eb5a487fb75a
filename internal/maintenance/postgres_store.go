package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore implements Store with PostgreSQL. The table is append-only;
// no code path issues UPDATE or DELETE against it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed maintenance store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, e *Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO maintenance_entries (asset_id, action, recorded_by, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, e.AssetID, e.Action, e.RecordedBy, e.RecordedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert maintenance entry: %w", err)
	}
	return nil
}

func (p *PostgresStore) History(ctx context.Context, assetID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, asset_id, action, recorded_by, recorded_at
		FROM maintenance_entries
		WHERE asset_id = $1
		ORDER BY id ASC
		LIMIT $2
	`, assetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AssetID, &e.Action, &e.RecordedBy, &e.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
