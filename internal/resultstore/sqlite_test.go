package resultstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/qcsr/internal/results"
	"github.com/dgallion1/qcsr/internal/srtree"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport() Report {
	return Report{
		DocID:       "1.2.3.4",
		ContentHash: ContentHash([]byte("report bytes")),
		Sections:    "history,other,scaninfo,summary",
		Filename:    "report.dcm",
		PatientID:   "P001",
		AcquiredAt:  time.Date(2024, 3, 15, 10, 42, 5, 0, time.UTC),
		CreatedAt:   time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC),
	}
}

func sampleResults() []results.Result {
	return []results.Result{
		{Category: results.CategoryString, Name: "Scan Mode", Value: "Array"},
		{Category: results.CategoryFloat, Name: "L1-L4_BMD", Value: 1.023},
		{Category: results.CategoryFloat, Name: "Change", Value: -2.6},
	}
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.Save(ctx, sampleReport(), sampleResults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Results(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored report")
	}
	if got.PatientID != "P001" || got.Filename != "report.dcm" {
		t.Errorf("unexpected report %+v", got.Report)
	}
	if !got.AcquiredAt.Equal(sampleReport().AcquiredAt) {
		t.Errorf("expected acquired %v, got %v", sampleReport().AcquiredAt, got.AcquiredAt)
	}
	if len(got.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got.Results))
	}
	if got.Results[1].Name != "L1-L4_BMD" || got.Results[1].Value != 1.023 {
		t.Errorf("unexpected result %+v", got.Results[1])
	}
	if got.Results[0].Value != "Array" {
		t.Errorf("expected string value kept, got %v", got.Results[0].Value)
	}
}

func TestSQLiteStore_SaveReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.Save(ctx, sampleReport(), sampleResults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, sampleReport(), sampleResults()[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := s.Results(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(got.Results) != 1 {
		t.Errorf("expected results replaced, got %d", len(got.Results))
	}
}

func TestSQLiteStore_Missing(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	got, err := s.Results(ctx, "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown doc, got %+v", got)
	}
	rep, err := s.FindByHash(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != nil {
		t.Errorf("expected nil for unknown hash, got %+v", rep)
	}
}

func TestSQLiteStore_FindByHash(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	rep := sampleReport()
	if err := s.Save(ctx, rep, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.FindByHash(ctx, rep.ContentHash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.DocID != rep.DocID {
		t.Errorf("expected doc %s, got %+v", rep.DocID, got)
	}
	if !got.AcquiredAt.Equal(rep.AcquiredAt) {
		t.Errorf("expected acquired time kept, got %v", got.AcquiredAt)
	}
	if got.Sections != rep.Sections {
		t.Errorf("expected sections %q, got %q", rep.Sections, got.Sections)
	}
}

func TestSQLiteStore_UpgradesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE reports (
		doc_id TEXT PRIMARY KEY, content_hash TEXT NOT NULL, filename TEXT NOT NULL,
		patient_id TEXT NOT NULL DEFAULT '', study_uid TEXT NOT NULL DEFAULT '',
		series_uid TEXT NOT NULL DEFAULT '', acquired_at TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open old database: %v", err)
	}
	defer s.Close()
	rep := sampleReport()
	if err := s.Save(context.Background(), rep, sampleResults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.FindByHash(context.Background(), rep.ContentHash)
	if err != nil || got == nil || got.Sections != rep.Sections {
		t.Errorf("expected sections %q, got %+v, %v", rep.Sections, got, err)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	rep := sampleReport()
	if err := s.Save(ctx, rep, sampleResults()); err != nil {
		t.Fatalf("save: %v", err)
	}

	deleted, err := s.Delete(ctx, rep.DocID)
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v, %v", deleted, err)
	}
	if got, _ := s.Results(ctx, rep.DocID); got != nil {
		t.Errorf("expected report gone, got %+v", got)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE doc_id = ?`, rep.DocID).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected results removed, found %d", n)
	}

	deleted, err = s.Delete(ctx, rep.DocID)
	if err != nil || deleted {
		t.Errorf("expected nothing to delete, got %v, %v", deleted, err)
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("abc"))
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a != ContentHash([]byte("abc")) {
		t.Error("expected stable hash")
	}
	if a == ContentHash([]byte("abd")) {
		t.Error("expected different hash for different input")
	}
}

func TestNewReport(t *testing.T) {
	doc := &srtree.Document{
		Modality: "SR",
		Header: map[string]string{
			srtree.KeySOPInstanceUID: "1.2.3",
			srtree.KeyPatientID:      "P9",
			srtree.KeyStudyDate:      "20240102",
		},
	}
	rep := NewReport(doc, "hash", "a.dcm")
	if rep.DocID != "1.2.3" {
		t.Errorf("expected SOP UID as doc ID, got %q", rep.DocID)
	}
	if rep.PatientID != "P9" {
		t.Errorf("expected patient P9, got %q", rep.PatientID)
	}
	if rep.AcquiredAt.IsZero() {
		t.Error("expected acquisition time from study date")
	}

	anon := NewReport(&srtree.Document{Modality: "SR", Header: map[string]string{}}, "hash", "b.dcm")
	if anon.DocID != "hash" {
		t.Errorf("expected hash as doc ID, got %q", anon.DocID)
	}
}

func TestNop(t *testing.T) {
	var s Store = Nop{}
	ctx := context.Background()
	if err := s.Save(ctx, sampleReport(), sampleResults()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got, _ := s.Results(ctx, "1.2.3.4"); got != nil {
		t.Errorf("expected nothing stored, got %+v", got)
	}
}
