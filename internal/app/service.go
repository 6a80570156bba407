// Package service wires the data aggregation layer together and implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/okian/schoolboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/schoolboard/internal/adapters/mq/worker"
	"github.com/okian/schoolboard/internal/adapters/repository"
	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/internal/config"
	"github.com/okian/schoolboard/internal/domain/auth"
	"github.com/okian/schoolboard/internal/domain/cache"
	"github.com/okian/schoolboard/internal/domain/join"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
)

// Service implements the API dependencies for the dashboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	cache     *cache.Cache
	store     *repository.Store
	datasets  *Datasets
	index     *YearIndex
	assembler *Assembler
	joiner    *join.Engine
	sessions  *auth.Sessions

	// Warm-up
	warmQueue *eventqueue.InMemoryQueue
	warmPool  *workerpool.Pool
	scheduler *workerpool.Scheduler
	cancel    context.CancelFunc

	// Configuration
	cacheTTL      time.Duration
	sessionTTL    time.Duration
	sourceTimeout time.Duration
	parallel      bool
	maxParallel   int
	warmInterval  time.Duration
	warmWorkers   int
	warmQueueSize int
	warmOnStart   bool
	passKey       string
	now           func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCacheTTL sets how long datasets and packages stay valid.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithClock sets the time source for the cache, sessions and timings.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSourceTimeout bounds every source read.
func WithSourceTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sourceTimeout = d
		}
	}
}

// WithParallelLoads enables concurrent section loads.
func WithParallelLoads(enabled bool, limit int) Option {
	return func(s *Service) {
		s.parallel = enabled
		s.maxParallel = limit
	}
}

// WithWarmUp schedules background package builds every interval. A zero
// interval with warmOnStart still warms once at startup.
func WithWarmUp(interval time.Duration, workers, queueSize int, warmOnStart bool) Option {
	return func(s *Service) {
		s.warmInterval = interval
		if workers > 0 {
			s.warmWorkers = workers
		}
		if queueSize > 0 {
			s.warmQueueSize = queueSize
		}
		s.warmOnStart = warmOnStart
	}
}

// WithPassKey guards the API with a passkey.
func WithPassKey(key string, ttl time.Duration) Option {
	return func(s *Service) {
		s.passKey = key
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// FromConfig translates process configuration into options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithCacheTTL(cfg.CacheTTL),
		WithSourceTimeout(cfg.SourceTimeout),
		WithParallelLoads(cfg.ParallelLoads, cfg.MaxParallelLoads),
		WithWarmUp(cfg.WarmInterval, cfg.WarmWorkers, cfg.WarmQueueSize, cfg.WarmInterval > 0),
		WithPassKey(cfg.PassKey, cfg.SessionTTL),
	}
}

// New constructs a Service reading tables from src.
func New(src source.Source, tables config.Tables, opts ...Option) *Service {
	s := &Service{
		cacheTTL:      cache.DefaultTTL,
		sessionTTL:    auth.DefaultSessionTTL,
		sourceTimeout: 20 * time.Second,
		maxParallel:   4,
		warmWorkers:   2,
		warmQueueSize: 64,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.cache = cache.New(cache.WithTTL(s.cacheTTL), cache.WithClock(s.now))
	s.store = repository.New(src, tables,
		repository.WithTimeout(s.sourceTimeout),
		repository.WithLogger(s.logger),
	)
	s.datasets = NewDatasets(s.store, s.cache)
	s.index = NewYearIndex(s.datasets, s.cache)
	s.assembler = NewAssembler(s.datasets, s.index, s.cache,
		WithAssemblerParallelism(s.parallel, s.maxParallel),
		WithAssemblerClock(s.now),
		WithAssemblerLogger(s.logger),
	)
	s.joiner = join.New(s.datasets, join.WithLogger(s.logger))
	s.sessions = auth.NewSessions(s.passKey,
		auth.WithTTL(s.sessionTTL),
		auth.WithClock(s.now),
		auth.WithLogger(s.logger),
	)
	return s
}

// Start launches the warm-up workers when configured.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting dashboard service...")

	if s.warmInterval > 0 || s.warmOnStart {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel
		s.warmQueue = eventqueue.NewInMemoryQueue(
			eventqueue.WithCapacity(s.warmQueueSize),
			eventqueue.WithBufferSize(s.warmQueueSize),
		)
		s.warmPool = workerpool.NewPool(s.warmWorkers, s.warmQueue, s,
			workerpool.WithLogger(s.logger),
			workerpool.WithJobTimeout(s.sourceTimeout*4),
		)
		s.warmPool.Start(runCtx)
		s.scheduler = workerpool.NewScheduler(s.warmQueue, s.warmInterval, period.Latest, s.logger)
		go s.scheduler.Run(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "dashboard service started",
		logger.Duration("cacheTTL", s.cacheTTL),
		logger.Duration("warmInterval", s.warmInterval),
		logger.Int("warmWorkers", s.warmWorkers),
		logger.Bool("parallelLoads", s.parallel),
		logger.Bool("auth", s.sessions.Enabled()),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping dashboard service...")

	if s.cancel != nil {
		s.cancel()
		<-s.scheduler.Done()
	}
	if s.warmPool != nil {
		_ = s.warmPool.Shutdown(ctx)
	}
	s.cancel, s.warmPool, s.warmQueue, s.scheduler = nil, nil, nil, nil

	s.started = false
	s.logger.Info(ctx, "dashboard service stopped")
}

// GetDataPackage returns the package for period and dashboard type.
func (s *Service) GetDataPackage(ctx context.Context, periodToken string, d model.DashboardType) (*model.Package, error) {
	return s.assembler.Assemble(ctx, periodToken, d)
}

// GetAvailableYears lists every domain's periods.
func (s *Service) GetAvailableYears(ctx context.Context) (model.AvailableYears, error) {
	return s.index.Available(ctx)
}

// Join finds the records of targets that belong to the selected people.
// No targets means every other domain.
func (s *Service) Join(ctx context.Context, from model.Domain, selected []record.Record, targets []model.Domain) (join.Result, error) {
	if len(targets) == 0 {
		for _, d := range model.Domains {
			if d != from {
				targets = append(targets, d)
			}
		}
	}
	return s.joiner.Join(ctx, from, selected, targets)
}

// SearchIDMapping returns mapping rows with any field containing query.
func (s *Service) SearchIDMapping(ctx context.Context, query string) ([]record.Record, error) {
	rows, err := s.datasets.IDMapping(ctx)
	if err != nil {
		return nil, err
	}
	return record.Search(rows, query), nil
}

// Invalidate drops cache entries: everything for an empty key, a prefix
// for a key ending in "*", otherwise that key. It returns how many entries
// were dropped.
func (s *Service) Invalidate(ctx context.Context, key string) int {
	key = strings.TrimSpace(key)
	var n int
	switch {
	case key == "":
		n = s.cache.Invalidate()
	case strings.HasSuffix(key, "*"):
		n = s.cache.InvalidatePrefix(strings.TrimSuffix(key, "*"))
	default:
		n = s.cache.Invalidate(key)
	}
	s.logger.Info(ctx, "cache invalidated", logger.String("key", key), logger.Int("removed", n))
	return n
}

// CacheEntries describes the cache content.
func (s *Service) CacheEntries() []cache.EntryInfo { return s.cache.Entries() }

// Connection status values.
const (
	ConnectionOK      = "success"
	ConnectionFailed  = "failed"
	ConnectionSkipped = "skipped"
)

// ConnectionResult reports one configured table.
type ConnectionResult struct {
	Key      string `json:"key"`
	Status   string `json:"status"`
	Sections int    `json:"sections"`
	Error    string `json:"error,omitempty"`
}

// TestConnections lists the sections of every configured table.
func (s *Service) TestConnections(ctx context.Context) []ConnectionResult {
	keys := config.Tables{}.Keys()
	out := make([]ConnectionResult, 0, len(keys))
	for _, k := range keys {
		names, err := s.store.Probe(ctx, k)
		switch {
		case errors.Is(err, repository.ErrNotConfigured):
			out = append(out, ConnectionResult{Key: k, Status: ConnectionSkipped})
		case err != nil:
			metrics.RecordSourceFailure("probe:"+k, "read_error")
			out = append(out, ConnectionResult{Key: k, Status: ConnectionFailed, Error: err.Error()})
		default:
			out = append(out, ConnectionResult{Key: k, Status: ConnectionOK, Sections: len(names)})
		}
	}
	return out
}

// Sessions exposes passkey sessions to the HTTP layer.
func (s *Service) Sessions() *auth.Sessions { return s.sessions }

// Warm implements the worker pool's Warmer.
func (s *Service) Warm(ctx context.Context, j model.WarmJob) error {
	_, err := s.assembler.Assemble(ctx, j.Period, j.Dashboard)
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	entries := s.cache.Entries()
	valid := 0
	for _, e := range entries {
		if e.Valid {
			valid++
		}
	}
	stats := map[string]interface{}{
		"started":        s.started,
		"cacheTTL":       s.cacheTTL.String(),
		"cacheEntries":   len(entries),
		"cacheValid":     valid,
		"parallelLoads":  s.parallel,
		"authEnabled":    s.sessions.Enabled(),
		"sessionsActive": s.sessions.Active(),
	}
	if s.warmPool != nil {
		stats["warmWorkers"] = s.warmPool.Size()
		stats["warmProcessed"] = s.warmPool.Processed()
		stats["warmFailed"] = s.warmPool.Failed()
		stats["warmQueueLength"] = s.warmQueue.Len(ctx)
	}
	metrics.UpdateCacheEntries(len(entries))
	metrics.UpdateSessionsActive(s.sessions.Active())
	return stats
}
