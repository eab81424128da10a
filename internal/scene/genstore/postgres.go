package genstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the generated_assets table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS generated_assets (
    concept    TEXT PRIMARY KEY,
    asset_url  TEXT NOT NULL,
    format     TEXT NOT NULL DEFAULT '',
    job_id     TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] over the given connection
// or pool. Call [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the generated_assets table if
// it does not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("genstore: migrate: %w", err)
	}
	return nil
}

// Get implements [Store]. It returns (nil, nil) when no record exists.
func (s *PostgresStore) Get(ctx context.Context, concept string) (*Record, error) {
	const query = `
		SELECT concept, asset_url, format, job_id, created_at, updated_at
		FROM generated_assets
		WHERE concept = $1`

	var rec Record
	err := s.db.QueryRow(ctx, query, concept).Scan(
		&rec.Concept, &rec.AssetURL, &rec.Format, &rec.JobID,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("genstore: get %q: %w", concept, err)
	}
	return &rec, nil
}

// Put implements [Store] as an upsert keyed by concept.
func (s *PostgresStore) Put(ctx context.Context, rec *Record) error {
	if rec.Concept == "" {
		return fmt.Errorf("genstore: record has no concept")
	}
	if rec.AssetURL == "" {
		return fmt.Errorf("genstore: record %q has no asset url", rec.Concept)
	}

	const query = `
		INSERT INTO generated_assets (concept, asset_url, format, job_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (concept) DO UPDATE SET
			asset_url = EXCLUDED.asset_url,
			format = EXCLUDED.format,
			job_id = EXCLUDED.job_id,
			updated_at = now()
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query, rec.Concept, rec.AssetURL, rec.Format, rec.JobID).
		Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("genstore: put %q: %w", rec.Concept, err)
	}
	return nil
}
