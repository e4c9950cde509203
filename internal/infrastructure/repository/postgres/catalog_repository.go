package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/kirillkom/assessment-recommender/internal/core/domain"
)

const catalogSchemaLockID int64 = 2026101701

// CatalogRepository stores the ingested record list. The position column is
// the record's row in every index built from it.
type CatalogRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *CatalogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across scraper/indexer/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, catalogSchemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS catalog_records (
	position INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	remote_testing TEXT NOT NULL DEFAULT 'No',
	adaptive TEXT NOT NULL DEFAULT 'No',
	test_types JSONB NOT NULL DEFAULT '[]'::jsonb,
	primary_type TEXT NOT NULL DEFAULT '',
	ingested_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveRecords replaces the whole catalog in one transaction.
func (r *CatalogRepository) SaveRecords(ctx context.Context, records []domain.CatalogRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_records`); err != nil {
		return fmt.Errorf("clear catalog records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO catalog_records (
	position, name, url, description, duration, remote_testing, adaptive, test_types, primary_type, ingested_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`)
	if err != nil {
		return fmt.Errorf("prepare catalog insert: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	for i, rec := range records {
		typesJSON, err := json.MarshalNoEscape(nonNilStrings(rec.TestTypes))
		if err != nil {
			return fmt.Errorf("marshal test types: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			i, rec.Name, rec.URL, rec.Description, rec.Duration,
			string(rec.RemoteTesting), string(rec.Adaptive), typesJSON, rec.PrimaryType, now,
		); err != nil {
			return fmt.Errorf("insert catalog record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

func (r *CatalogRepository) LoadRecords(ctx context.Context) ([]domain.CatalogRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT name, url, description, duration, remote_testing, adaptive, test_types, primary_type
FROM catalog_records
ORDER BY position ASC
`)
	if err != nil {
		return nil, fmt.Errorf("query catalog records: %w", err)
	}
	defer rows.Close()

	var out []domain.CatalogRecord
	for rows.Next() {
		var rec domain.CatalogRecord
		var remote, adaptive string
		var typesRaw []byte
		if err := rows.Scan(&rec.Name, &rec.URL, &rec.Description, &rec.Duration, &remote, &adaptive, &typesRaw, &rec.PrimaryType); err != nil {
			return nil, fmt.Errorf("scan catalog record: %w", err)
		}
		if err := json.Unmarshal(typesRaw, &rec.TestTypes); err != nil {
			return nil, fmt.Errorf("unmarshal test types: %w", err)
		}
		rec.RemoteTesting = domain.YesNo(remote)
		rec.Adaptive = domain.YesNo(adaptive)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog records: %w", err)
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "load catalog records", fmt.Errorf("catalog_records is empty"))
	}
	return out, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
