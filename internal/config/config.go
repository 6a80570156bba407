// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and the environment over those defaults.
// - Table identifiers are only ever reached through Tables.Lookup.
package config

import (
	"strings"
	"time"
)

// Source kinds understood by the service.
const (
	SourceSheets = "sheets"
	SourceSQLite = "sqlite"
	SourceYAML   = "yaml"
)

// Table lookup keys. These are the names the dashboard settings use for
// the workbook identifiers.
const (
	KeyNewbie         = "newbieSheet"
	KeyGraduate       = "graduateSheet"
	KeyGSAT           = "gsatSheet"
	KeyST             = "stSheet"
	KeyCurrentStudent = "currentstudentSheet"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// CacheTTL is how long datasets and packages stay valid.
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gt=0"`

	// SessionTTL bounds a passkey session.
	SessionTTL time.Duration `koanf:"session_ttl" validate:"gt=0"`

	// SourceTimeout bounds every single read against the backing tables.
	SourceTimeout time.Duration `koanf:"source_timeout" validate:"gt=0"`

	// ParallelLoads lets the assembler fetch independent sections concurrently.
	ParallelLoads    bool `koanf:"parallel_loads"`
	MaxParallelLoads int  `koanf:"max_parallel_loads" validate:"gte=1"`

	// WarmInterval schedules background package builds; zero disables it.
	WarmInterval  time.Duration `koanf:"warm_interval" validate:"gte=0"`
	WarmWorkers   int           `koanf:"warm_workers" validate:"gte=1"`
	WarmQueueSize int           `koanf:"warm_queue_size" validate:"gte=1"`

	// PassKey guards the API. Plain text or a bcrypt hash; empty disables auth.
	PassKey string `koanf:"pass_key"`

	Source  Source  `koanf:"source"`
	Tables  Tables  `koanf:"tables"`
	Metrics Metrics `koanf:"metrics"`
}

// Metrics configures the Prometheus exposition.
type Metrics struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace" validate:"required"`
	// RefreshInterval is how often runtime and warm-up gauges are sampled.
	RefreshInterval  time.Duration     `koanf:"refresh_interval" validate:"gt=0"`
	LatencyBucketsMs []float64         `koanf:"latency_buckets_ms"`
	Labels           map[string]string `koanf:"labels"`
}

// Source selects and configures the tabular backend.
type Source struct {
	Kind            string `koanf:"kind" validate:"oneof=sheets sqlite yaml"`
	CredentialsFile string `koanf:"credentials_file"`
	APIKey          string `koanf:"api_key"`
	SQLiteDir       string `koanf:"sqlite_dir" validate:"required_if=Kind sqlite"`
	FixtureFile     string `koanf:"fixture_file" validate:"required_if=Kind yaml"`
}

// Tables holds the workbook identifiers per dataset.
type Tables struct {
	Newbie         string `koanf:"newbie_sheet"`
	Graduate       string `koanf:"graduate_sheet"`
	GSAT           string `koanf:"gsat_sheet"`
	ST             string `koanf:"st_sheet"`
	CurrentStudent string `koanf:"current_student_sheet"`
}

// Lookup resolves a table key to its identifier. Unknown keys and blank
// identifiers both report false.
func (t Tables) Lookup(key string) (string, bool) {
	var v string
	switch key {
	case KeyNewbie:
		v = t.Newbie
	case KeyGraduate:
		v = t.Graduate
	case KeyGSAT:
		v = t.GSAT
	case KeyST:
		v = t.ST
	case KeyCurrentStudent:
		v = t.CurrentStudent
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Keys lists every table key in a stable order.
func (t Tables) Keys() []string {
	return []string{KeyNewbie, KeyGraduate, KeyGSAT, KeyST, KeyCurrentStudent}
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		CacheTTL:         30 * time.Minute,
		SessionTTL:       24 * time.Hour,
		SourceTimeout:    20 * time.Second,
		ParallelLoads:    false,
		MaxParallelLoads: 4,
		WarmInterval:     0,
		WarmWorkers:      2,
		WarmQueueSize:    64,
		Source: Source{
			Kind: SourceSheets,
		},
		Metrics: Metrics{
			Enabled:         true,
			Namespace:       "schoolboard",
			RefreshInterval: 10 * time.Second,
		},
	}
}
