package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeResultsService is an in-memory stand-in for the remote results API.
type fakeResultsService struct {
	mu      sync.Mutex
	reports map[string]StoredReport
	status  int
	auth    string
}

func newFakeResultsService() *fakeResultsService {
	return &fakeResultsService{reports: make(map[string]StoredReport)}
}

func (f *fakeResultsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = r.Header.Get("Authorization")
	if f.status != 0 {
		http.Error(w, "unavailable", f.status)
		return
	}

	switch {
	case r.Method == http.MethodPut && len(r.URL.Path) > len("/reports/"):
		var rep StoredReport
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.reports[r.URL.Path[len("/reports/"):]] = rep
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && r.URL.Path == "/reports":
		hash := r.URL.Query().Get("hash")
		var found []Report
		for _, rep := range f.reports {
			if rep.ContentHash == hash {
				found = append(found, rep.Report)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"reports": found})
	case r.Method == http.MethodDelete:
		id := r.URL.Path[len("/reports/"):]
		if _, ok := f.reports[id]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(f.reports, id)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet:
		rep, ok := f.reports[r.URL.Path[len("/reports/"):]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(rep)
	default:
		http.Error(w, "bad request", http.StatusBadRequest)
	}
}

func TestRemoteStore_RoundTrip(t *testing.T) {
	fake := newFakeResultsService()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewRemoteStore(srv.URL, "secret")
	defer s.Close()
	ctx := context.Background()

	rep := sampleReport()
	if err := s.Save(ctx, rep, sampleResults()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if fake.auth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", fake.auth)
	}

	got, err := s.Results(ctx, rep.DocID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if got == nil || len(got.Results) != 3 {
		t.Fatalf("expected 3 results, got %+v", got)
	}

	found, err := s.FindByHash(ctx, rep.ContentHash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.DocID != rep.DocID {
		t.Errorf("expected doc %s, got %+v", rep.DocID, found)
	}

	deleted, err := s.Delete(ctx, rep.DocID)
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v, %v", deleted, err)
	}
	deleted, err = s.Delete(ctx, rep.DocID)
	if err != nil || deleted {
		t.Errorf("expected second delete to find nothing, got %v, %v", deleted, err)
	}
}

func TestRemoteStore_NotFound(t *testing.T) {
	srv := httptest.NewServer(newFakeResultsService())
	defer srv.Close()

	s := NewRemoteStore(srv.URL, "")
	got, err := s.Results(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
	rep, err := s.FindByHash(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep != nil {
		t.Errorf("expected nil, got %+v", rep)
	}
}

func TestRemoteStore_RetryableStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		fake := newFakeResultsService()
		fake.status = tc.status
		srv := httptest.NewServer(fake)

		err := NewRemoteStore(srv.URL, "").Save(context.Background(), sampleReport(), nil)
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		var rErr *RetryableError
		if got := errors.As(err, &rErr); got != tc.retryable {
			t.Errorf("status %d: expected retryable=%v, got %v (%v)", tc.status, tc.retryable, got, err)
		}
	}
}
