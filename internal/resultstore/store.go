package resultstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/dgallion1/qcsr/internal/results"
	"github.com/dgallion1/qcsr/internal/srtree"
)

// Report identifies a stored structured report.
type Report struct {
	DocID       string    `json:"doc_id"`
	ContentHash string    `json:"content_hash"`
	Sections    string    `json:"sections"` // Published buckets, see results.SectionKey
	Filename    string    `json:"filename"`
	PatientID   string    `json:"patient_id,omitempty"`
	StudyUID    string    `json:"study_uid,omitempty"`
	SeriesUID   string    `json:"series_uid,omitempty"`
	AcquiredAt  time.Time `json:"acquired_at,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoredReport is a report together with its published results.
type StoredReport struct {
	Report
	Results []results.Result `json:"results"`
}

// Store persists published results per report.
type Store interface {
	// Save replaces the report and all of its results.
	Save(ctx context.Context, rep Report, res []results.Result) error
	// Results returns the stored report, or nil when docID is unknown.
	Results(ctx context.Context, docID string) (*StoredReport, error)
	// FindByHash returns the report with the given content hash, or nil.
	FindByHash(ctx context.Context, hash string) (*Report, error)
	// Delete removes a report and its results, reporting whether it existed.
	Delete(ctx context.Context, docID string) (bool, error)
	Close() error
}

// ContentHash returns the hex BLAKE3 digest of data.
func ContentHash(data []byte) string {
	h := blake3.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NewReport describes doc for storage. The SOP Instance UID is the document
// ID; reports without one are keyed by their content hash.
func NewReport(doc *srtree.Document, hash, filename string) Report {
	rep := Report{
		DocID:       hash,
		ContentHash: hash,
		Filename:    filename,
		CreatedAt:   time.Now().UTC(),
	}
	if doc == nil {
		return rep
	}
	if uid := doc.Header[srtree.KeySOPInstanceUID]; uid != "" {
		rep.DocID = uid
	}
	rep.PatientID = doc.Header[srtree.KeyPatientID]
	rep.StudyUID = doc.Header[srtree.KeyStudyInstanceUID]
	rep.SeriesUID = doc.Header[srtree.KeySeriesInstanceUID]
	if at, err := doc.AcquisitionTime(); err == nil {
		rep.AcquiredAt = at
	}
	return rep
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, msg)
}

// Nop discards everything. It backs RESULT_STORE=none.
type Nop struct{}

func (Nop) Save(context.Context, Report, []results.Result) error { return nil }

func (Nop) Results(context.Context, string) (*StoredReport, error) { return nil, nil }

func (Nop) FindByHash(context.Context, string) (*Report, error) { return nil, nil }

func (Nop) Delete(context.Context, string) (bool, error) { return false, nil }

func (Nop) Close() error { return nil }
