// Package probe exercises a running dashboard server over HTTP and checks
// that repeated package requests return identical data.
package probe

import "time"

// Config holds configuration for a probe run.
type Config struct {
	BaseURL string        // Base URL of the service
	PassKey string        // Passkey for /api/session, empty when auth is off
	Period  string        // Period token requested for every dashboard
	Rounds  int           // Requests per dashboard type
	Workers int           // Number of concurrent requests
	Timeout time.Duration // HTTP request timeout
	Verbose bool          // Log every response
}

// Defaults.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultRounds  = 2
	DefaultTimeout = 30 * time.Second
)

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Period == "" {
		c.Period = "latest"
	}
	if c.Rounds < 1 {
		c.Rounds = DefaultRounds
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Metadata mirrors the package metadata block.
type Metadata struct {
	TotalRecords int   `json:"totalRecords"`
	Queries      int   `json:"queries"`
	LoadDuration int64 `json:"loadDuration"`
	Cached       bool  `json:"cached"`
}

// Response is one package response: its metadata and the raw sections.
type Response struct {
	Dashboard string
	Metadata  Metadata
	Sections  map[string]any
	Latency   time.Duration
}

// Stats holds probe statistics.
type Stats struct {
	Requests   int
	Failed     int
	Cached     int
	Mismatches int
	Years      []int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
