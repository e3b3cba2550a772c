package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dgallion1/qcsr/internal/results"
)

// MigrationPostgres creates the result tables. It is safe to run repeatedly.
const MigrationPostgres = `
CREATE TABLE IF NOT EXISTS qc_reports (
    doc_id       TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    sections     TEXT NOT NULL DEFAULT '',
    filename     TEXT NOT NULL,
    patient_id   TEXT NOT NULL DEFAULT '',
    study_uid    TEXT NOT NULL DEFAULT '',
    series_uid   TEXT NOT NULL DEFAULT '',
    acquired_at  TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE qc_reports ADD COLUMN IF NOT EXISTS sections TEXT NOT NULL DEFAULT '';

CREATE INDEX IF NOT EXISTS idx_qc_reports_hash ON qc_reports (content_hash);

CREATE TABLE IF NOT EXISTS qc_results (
    doc_id   TEXT NOT NULL REFERENCES qc_reports(doc_id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    category TEXT NOT NULL,
    name     TEXT NOT NULL,
    value    JSONB NOT NULL,
    PRIMARY KEY (doc_id, position)
);
`

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PostgresStore keeps results in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPool opens a pgx pool and checks connectivity.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresStore runs the migration and returns a store on pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, MigrationPostgres); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Save(ctx context.Context, rep Report, res []results.Result) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return saveReport(ctx, tx, rep, res)
	})
}

func saveReport(ctx context.Context, q queryable, rep Report, res []results.Result) error {
	var acquired any
	if !rep.AcquiredAt.IsZero() {
		acquired = rep.AcquiredAt
	}
	_, err := q.Exec(ctx, `
		INSERT INTO qc_reports (doc_id, content_hash, sections, filename, patient_id, study_uid, series_uid, acquired_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (doc_id) DO UPDATE SET content_hash = EXCLUDED.content_hash,
			sections = EXCLUDED.sections,
			filename = EXCLUDED.filename, patient_id = EXCLUDED.patient_id,
			study_uid = EXCLUDED.study_uid, series_uid = EXCLUDED.series_uid,
			acquired_at = EXCLUDED.acquired_at, created_at = EXCLUDED.created_at`,
		rep.DocID, rep.ContentHash, rep.Sections, rep.Filename, rep.PatientID, rep.StudyUID, rep.SeriesUID,
		acquired, rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM qc_results WHERE doc_id = $1`, rep.DocID); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	for i, r := range res {
		val, err := json.Marshal(r.Value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", r.Name, err)
		}
		if _, err := q.Exec(ctx,
			`INSERT INTO qc_results (doc_id, position, category, name, value) VALUES ($1,$2,$3,$4,$5)`,
			rep.DocID, i, r.Category, r.Name, val); err != nil {
			return fmt.Errorf("save result %s: %w", r.Name, err)
		}
	}
	return nil
}

const pgReportCols = `doc_id, content_hash, sections, filename, patient_id, study_uid, series_uid, acquired_at, created_at`

func scanPGReport(row pgx.Row) (*Report, error) {
	var rep Report
	var acquired *time.Time
	err := row.Scan(&rep.DocID, &rep.ContentHash, &rep.Sections, &rep.Filename, &rep.PatientID,
		&rep.StudyUID, &rep.SeriesUID, &acquired, &rep.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if acquired != nil {
		rep.AcquiredAt = *acquired
	}
	return &rep, nil
}

func (s *PostgresStore) Results(ctx context.Context, docID string) (*StoredReport, error) {
	rep, err := scanPGReport(s.pool.QueryRow(ctx,
		`SELECT `+pgReportCols+` FROM qc_reports WHERE doc_id = $1`, docID))
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if rep == nil {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT category, name, value FROM qc_results WHERE doc_id = $1 ORDER BY position`, docID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := &StoredReport{Report: *rep, Results: []results.Result{}}
	for rows.Next() {
		var r results.Result
		var val []byte
		if err := rows.Scan(&r.Category, &r.Name, &val); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(val, &r.Value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Name, err)
		}
		out.Results = append(out.Results, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*Report, error) {
	rep, err := scanPGReport(s.pool.QueryRow(ctx,
		`SELECT `+pgReportCols+` FROM qc_reports WHERE content_hash = $1 ORDER BY created_at DESC LIMIT 1`, hash))
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return rep, nil
}

// Delete relies on the cascade from qc_reports to qc_results.
func (s *PostgresStore) Delete(ctx context.Context, docID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM qc_reports WHERE doc_id = $1`, docID)
	if err != nil {
		return false, fmt.Errorf("delete report: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
