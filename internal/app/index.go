package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/okian/schoolboard/internal/domain/cache"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
)

// YearIndex discovers the periods each domain has data for. Field-scanned
// domains reuse the cached dataset; current students are discovered from
// section names.
type YearIndex struct {
	data  *Datasets
	cache *cache.Cache
}

// NewYearIndex creates a YearIndex.
func NewYearIndex(data *Datasets, c *cache.Cache) *YearIndex {
	return &YearIndex{data: data, cache: c}
}

// Years lists d's periods, newest first. The result is empty when the
// field or pattern is absent.
func (x *YearIndex) Years(ctx context.Context, d model.Domain) ([]period.Period, error) {
	ps, _, err := cache.Fetch(ctx, x.cache, keyYearsPrefix+string(d), func(ctx context.Context) ([]period.Period, error) {
		if d == model.CurrentStudents {
			names, err := x.data.RosterSections(ctx)
			if err != nil {
				return nil, err
			}
			return period.ScanSections(names), nil
		}
		field := d.YearField()
		if field == "" {
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownDomain, d)
		}
		recs, err := x.data.All(ctx, d)
		if err != nil {
			return nil, err
		}
		return ScanYears(recs, field), nil
	})
	return ps, err
}

// Latest is d's newest period.
func (x *YearIndex) Latest(ctx context.Context, d model.Domain) (period.Period, bool, error) {
	ps, err := x.Years(ctx, d)
	if err != nil || len(ps) == 0 {
		return period.Period{}, false, err
	}
	return ps[0], true, nil
}

// Available lists every domain's periods and their year union. Domains are
// scanned concurrently; a domain that fails contributes no periods.
func (x *YearIndex) Available(ctx context.Context) (model.AvailableYears, error) {
	results := make([][]period.Period, len(model.Domains))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range model.Domains {
		i, d := i, d
		g.Go(func() error {
			ps, err := x.Years(gctx, d)
			if err != nil {
				return fmt.Errorf("years of %s: %w", d, err)
			}
			results[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.AvailableYears{}, err
	}
	var out model.AvailableYears
	for i, d := range model.Domains {
		out.Set(d, results[i])
	}
	out.Union()
	return out, nil
}

// ScanYears collects the distinct integer values of field, newest first.
// Non-numeric values are discarded.
func ScanYears(recs []record.Record, field string) []period.Period {
	ps := make([]period.Period, 0, 8)
	for _, r := range recs {
		if y, ok := r.Int(field); ok {
			ps = append(ps, period.FromYear(y))
		}
	}
	return period.SortDesc(ps)
}
