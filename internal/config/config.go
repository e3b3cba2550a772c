package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Result store backends.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRemote   = "remote"
	StoreNone     = "none"
)

type Config struct {
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Auth
	APIKey string `mapstructure:"QCSR_API_KEY"`

	// Worker pool
	WorkerCount  int `mapstructure:"WORKER_COUNT"`
	MaxQueueSize int `mapstructure:"MAX_QUEUE_SIZE"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"MAX_UPLOAD_BYTES"`

	// Job state
	JobTTL time.Duration `mapstructure:"JOB_TTL"`

	// Result store
	ResultStore   string `mapstructure:"RESULT_STORE"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`
	ResultsURL    string `mapstructure:"RESULTS_URL"`
	ResultsAPIKey string `mapstructure:"RESULTS_API_KEY"`

	// Extraction; wrapper titles separated by ";"
	RootTitles string `mapstructure:"ROOT_TITLES"`

	// Tracing
	JaegerEndpoint string `mapstructure:"OTEL_EXPORTER_JAEGER_ENDPOINT"`
}

var keys = []string{
	"PORT", "ENV", "QCSR_API_KEY",
	"WORKER_COUNT", "MAX_QUEUE_SIZE", "MAX_UPLOAD_BYTES", "JOB_TTL",
	"RESULT_STORE", "SQLITE_PATH", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"RESULTS_URL", "RESULTS_API_KEY",
	"ROOT_TITLES", "OTEL_EXPORTER_JAEGER_ENDPOINT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8090")
	v.SetDefault("ENV", "production")
	v.SetDefault("WORKER_COUNT", 4)
	v.SetDefault("MAX_QUEUE_SIZE", 100)
	v.SetDefault("MAX_UPLOAD_BYTES", 52428800) // 50MB
	v.SetDefault("JOB_TTL", "1h")
	v.SetDefault("RESULT_STORE", StoreSQLite)
	v.SetDefault("SQLITE_PATH", "qcsr.db")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("ROOT_TITLES", "BMD Rate of Change Report")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	cfg.ResultStore = strings.ToLower(strings.TrimSpace(cfg.ResultStore))

	return cfg, nil
}

// Validate checks settings the server cannot run without.
func (c *Config) Validate() error {
	if c.APIKey == "" && !c.IsDev() {
		return fmt.Errorf("QCSR_API_KEY is required")
	}
	switch c.ResultStore {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case StoreRemote:
		if c.ResultsURL == "" {
			return fmt.Errorf("RESULTS_URL is required for the remote store")
		}
	case StoreNone:
	default:
		return fmt.Errorf("unknown RESULT_STORE %q", c.ResultStore)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Titles returns the configured wrapper titles.
func (c *Config) Titles() []string {
	var out []string
	for _, t := range strings.Split(c.RootTitles, ";") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
