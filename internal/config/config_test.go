package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.JobTTL)
	}
	if cfg.ResultStore != StoreSQLite {
		t.Errorf("expected sqlite store, got %q", cfg.ResultStore)
	}
	if got := cfg.Titles(); len(got) != 1 || got[0] != "BMD Rate of Change Report" {
		t.Errorf("unexpected default titles %v", got)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_TTL", "15m")
	t.Setenv("RESULT_STORE", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://localhost/qcsr")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("ROOT_TITLES", "BMD Rate of Change Report; Body Composition Report ;")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("expected port 9000, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 15*time.Minute {
		t.Errorf("expected 15m TTL, got %v", cfg.JobTTL)
	}
	if cfg.ResultStore != StorePostgres {
		t.Errorf("expected postgres store, got %q", cfg.ResultStore)
	}
	if cfg.DBMaxConns != 20 {
		t.Errorf("expected 20 max conns, got %d", cfg.DBMaxConns)
	}
	titles := cfg.Titles()
	if len(titles) != 2 || titles[1] != "Body Composition Report" {
		t.Errorf("unexpected titles %v", titles)
	}
}

func TestLoad_NonPositiveFallsBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("MAX_QUEUE_SIZE", "-5")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerCount != 4 || cfg.MaxQueueSize != 100 {
		t.Errorf("expected fallbacks 4/100, got %d/%d", cfg.WorkerCount, cfg.MaxQueueSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite ok", Config{APIKey: "k", ResultStore: StoreSQLite, SQLitePath: "x.db"}, false},
		{"missing api key", Config{ResultStore: StoreNone}, true},
		{"dev without api key", Config{Env: "development", ResultStore: StoreNone}, false},
		{"postgres without url", Config{APIKey: "k", ResultStore: StorePostgres}, true},
		{"postgres conns inverted", Config{APIKey: "k", ResultStore: StorePostgres, DatabaseURL: "postgres://x", DBMaxConns: 1, DBMinConns: 5}, true},
		{"remote without url", Config{APIKey: "k", ResultStore: StoreRemote}, true},
		{"remote ok", Config{APIKey: "k", ResultStore: StoreRemote, ResultsURL: "http://results"}, false},
		{"unknown store", Config{APIKey: "k", ResultStore: "mongo"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
