package worker

import (
	"context"
	"time"

	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/pkg/logger"
)

// Enqueuer accepts jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, j Job) bool
}

// Scheduler enqueues a warm-up job for every dashboard type on a fixed
// interval, starting with one round right away.
type Scheduler struct {
	queue      Enqueuer
	interval   time.Duration
	period     string
	dashboards []model.DashboardType
	logger     logger.Logger
	done       chan struct{}
}

// NewScheduler creates a scheduler warming period for every dashboard type.
func NewScheduler(q Enqueuer, interval time.Duration, period string, l logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Get()
	}
	return &Scheduler{
		queue:      q,
		interval:   interval,
		period:     period,
		dashboards: model.DashboardTypes,
		logger:     l.Named("scheduler"),
		done:       make(chan struct{}),
	}
}

// Round enqueues one job per dashboard type and returns how many were
// accepted.
func (s *Scheduler) Round(ctx context.Context, reason string) int {
	accepted := 0
	for _, d := range s.dashboards {
		if s.queue.Enqueue(ctx, Job{Period: s.period, Dashboard: d, Reason: reason}) {
			accepted++
		} else {
			s.logger.Warn(ctx, "warm-up job dropped", logger.String("dashboard", string(d)))
		}
	}
	return accepted
}

// Run blocks until ctx is done. A non-positive interval runs one round and
// returns.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	s.Round(ctx, "startup")
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.Round(ctx, "interval")
			s.logger.Info(ctx, "warm-up round scheduled", logger.Int("jobs", n))
		}
	}
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} { return s.done }
