package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/qcsr/internal/results"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reports (
	doc_id       TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	sections     TEXT NOT NULL DEFAULT '',
	filename     TEXT NOT NULL,
	patient_id   TEXT NOT NULL DEFAULT '',
	study_uid    TEXT NOT NULL DEFAULT '',
	series_uid   TEXT NOT NULL DEFAULT '',
	acquired_at  TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	doc_id   TEXT NOT NULL,
	position INTEGER NOT NULL,
	category TEXT NOT NULL,
	name     TEXT NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (doc_id, position),
	FOREIGN KEY (doc_id) REFERENCES reports(doc_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_reports_hash ON reports(content_hash);
`

// SQLiteStore keeps results in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between worker goroutines.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	if err := addSectionsColumn(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// addSectionsColumn upgrades databases created before reports carried
// their section key.
func addSectionsColumn(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('reports') WHERE name = 'sections'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect sqlite schema: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE reports ADD COLUMN sections TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("add sections column: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, rep Report, res []results.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports
		(doc_id, content_hash, sections, filename, patient_id, study_uid, series_uid, acquired_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.DocID, rep.ContentHash, rep.Sections, rep.Filename, rep.PatientID, rep.StudyUID, rep.SeriesUID,
		formatTime(rep.AcquiredAt), formatTime(rep.CreatedAt))
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE doc_id = ?`, rep.DocID); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	for i, r := range res {
		val, err := json.Marshal(r.Value)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", r.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO results (doc_id, position, category, name, value) VALUES (?, ?, ?, ?, ?)`,
			rep.DocID, i, r.Category, r.Name, string(val)); err != nil {
			return fmt.Errorf("save result %s: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

const sqliteReportCols = `doc_id, content_hash, sections, filename, patient_id, study_uid, series_uid, acquired_at, created_at`

func scanSQLiteReport(row *sql.Row) (*Report, error) {
	var rep Report
	var acquired, created string
	err := row.Scan(&rep.DocID, &rep.ContentHash, &rep.Sections, &rep.Filename, &rep.PatientID,
		&rep.StudyUID, &rep.SeriesUID, &acquired, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rep.AcquiredAt = parseTime(acquired)
	rep.CreatedAt = parseTime(created)
	return &rep, nil
}

func (s *SQLiteStore) Results(ctx context.Context, docID string) (*StoredReport, error) {
	rep, err := scanSQLiteReport(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteReportCols+` FROM reports WHERE doc_id = ?`, docID))
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if rep == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, name, value FROM results WHERE doc_id = ? ORDER BY position`, docID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := &StoredReport{Report: *rep, Results: []results.Result{}}
	for rows.Next() {
		var r results.Result
		var val string
		if err := rows.Scan(&r.Category, &r.Name, &val); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(val), &r.Value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Name, err)
		}
		out.Results = append(out.Results, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (*Report, error) {
	rep, err := scanSQLiteReport(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteReportCols+` FROM reports WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1`, hash))
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return rep, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, docID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE doc_id = ?`, docID); err != nil {
		return false, fmt.Errorf("delete results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE doc_id = ?`, docID)
	if err != nil {
		return false, fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete report: %w", err)
	}
	return n > 0, tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
