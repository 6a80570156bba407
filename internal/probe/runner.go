package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/okian/schoolboard/pkg/logger"
)

// Dashboards are the package types requested by a probe run.
var Dashboards = []string{"newbie", "graduate", "examScore", "stScore", "currentStudent"}

// Run checks health, logs in, then requests the years and every dashboard
// package Rounds times concurrently and verifies that the responses of each
// dashboard agree.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg = cfg.withDefaults()
	log := logger.Get().Named("probe")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting dashboard probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("period", cfg.Period),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	if err := client.Login(ctx, cfg.PassKey); err != nil {
		return stats, err
	}

	var (
		mu        sync.Mutex
		responses = map[string][]Response{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	g.Go(func() error {
		years, err := client.Years(gctx)
		mu.Lock()
		defer mu.Unlock()
		stats.Requests++
		if err != nil {
			stats.Failed++
			return fmt.Errorf("years: %w", err)
		}
		stats.Years = years
		return nil
	})
	for round := 0; round < cfg.Rounds; round++ {
		for _, d := range Dashboards {
			d := d
			g.Go(func() error {
				res, err := client.Package(gctx, cfg.Period, d)
				mu.Lock()
				defer mu.Unlock()
				stats.Requests++
				if err != nil {
					stats.Failed++
					return fmt.Errorf("package %s: %w", d, err)
				}
				if res.Metadata.Cached {
					stats.Cached++
				}
				if cfg.Verbose {
					log.Info(gctx, "package fetched",
						logger.String("dashboard", d),
						logger.Int("records", res.Metadata.TotalRecords),
						logger.Int("queries", res.Metadata.Queries),
						logger.Bool("cached", res.Metadata.Cached),
						logger.Duration("latency", res.Latency))
				}
				responses[d] = append(responses[d], res)
				return nil
			})
		}
	}
	err := g.Wait()

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	if err != nil {
		displayFinalStats(ctx, log, stats)
		return stats, err
	}

	if err := verify(responses, stats); err != nil {
		displayFinalStats(ctx, log, stats)
		return stats, err
	}
	displayFinalStats(ctx, log, stats)
	log.Info(ctx, "probe completed successfully")
	return stats, nil
}

// verify checks that the sections shared by the responses of a dashboard
// are identical and that at most one response was built rather than
// cached. Packages of one period accumulate sections, so a later response
// may carry more of them.
func verify(responses map[string][]Response, stats *Stats) error {
	var first error
	for _, d := range Dashboards {
		rs := responses[d]
		built := 0
		for _, r := range rs {
			if !r.Metadata.Cached {
				built++
			}
		}
		if built > 1 {
			stats.Mismatches++
			if first == nil {
				first = fmt.Errorf("%s: built %d times, want at most once", d, built)
			}
		}
		for i := 1; i < len(rs); i++ {
			a, b := shared(rs[0].Sections, rs[i].Sections)
			if diff := cmp.Diff(a, b); diff != "" {
				stats.Mismatches++
				if first == nil {
					first = fmt.Errorf("%s: response %d differs (-first +later):\n%s", d, i, diff)
				}
			}
		}
	}
	return first
}

// shared narrows both maps to their common keys.
func shared(a, b map[string]any) (map[string]any, map[string]any) {
	outA, outB := map[string]any{}, map[string]any{}
	for k, v := range a {
		if w, ok := b[k]; ok {
			outA[k], outB[k] = v, w
		}
	}
	return outA, outB
}

// displayFinalStats logs the final probe statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Requests) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("requests", stats.Requests),
		logger.Int("failed", stats.Failed),
		logger.Int("cached", stats.Cached),
		logger.Int("mismatches", stats.Mismatches),
		logger.Any("years", stats.Years),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requestsPerSecond", perSecond))
}
