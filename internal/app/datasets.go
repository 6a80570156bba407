package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/okian/schoolboard/internal/adapters/repository"
	"github.com/okian/schoolboard/internal/domain/benchmark"
	"github.com/okian/schoolboard/internal/domain/cache"
	"github.com/okian/schoolboard/internal/domain/identity"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
)

// Cache keys of the datasets.
const (
	keyDatasetPrefix  = "dataset:"
	keyIDMapping      = keyDatasetPrefix + "idMapping"
	keyBenchPrefix    = keyDatasetPrefix + "benchmarks:"
	keyRosterSections = keyDatasetPrefix + "sections:" + string(model.CurrentStudents)
	keyYearsPrefix    = "years:"
	keyPackagePrefix  = "package:"
)

// Datasets loads whole domain datasets through the cache. A dataset is read
// from the source at most once per TTL window.
type Datasets struct {
	store *repository.Store
	cache *cache.Cache
}

// NewDatasets creates a Datasets.
func NewDatasets(store *repository.Store, c *cache.Cache) *Datasets {
	return &Datasets{store: store, cache: c}
}

func datasetKey(d model.Domain) string { return keyDatasetPrefix + string(d) }

func (ds *Datasets) fetch(ctx context.Context, key string, load func(context.Context) ([]record.Record, error)) ([]record.Record, error) {
	recs, _, err := cache.Fetch(ctx, ds.cache, key, load)
	return recs, err
}

// Students is every admission record with coordinates attached.
func (ds *Datasets) Students(ctx context.Context) ([]record.Record, error) {
	return ds.fetch(ctx, datasetKey(model.Students), ds.store.Students)
}

// Graduates is every admission result.
func (ds *Datasets) Graduates(ctx context.Context) ([]record.Record, error) {
	return ds.fetch(ctx, datasetKey(model.Graduates), ds.store.Graduates)
}

// ExamScores is every year of GSAT scores.
func (ds *Datasets) ExamScores(ctx context.Context) ([]record.Record, error) {
	return ds.fetch(ctx, datasetKey(model.ExamScores), ds.store.ExamScores)
}

// STScores is every year of subject-test scores.
func (ds *Datasets) STScores(ctx context.Context) ([]record.Record, error) {
	return ds.fetch(ctx, datasetKey(model.STScores), ds.store.STScores)
}

// IDMapping is the registration number to national ID table.
func (ds *Datasets) IDMapping(ctx context.Context) ([]record.Record, error) {
	return ds.fetch(ctx, keyIDMapping, ds.store.IDMapping)
}

// Benchmarks is the folded band table of one exam.
func (ds *Datasets) Benchmarks(ctx context.Context, kind repository.BenchmarkKind) (benchmark.Table, error) {
	t, _, err := cache.Fetch(ctx, ds.cache, keyBenchPrefix+string(kind), func(ctx context.Context) (benchmark.Table, error) {
		rows, err := ds.store.Benchmarks(ctx, kind)
		if err != nil {
			return nil, err
		}
		return benchmark.Build(rows), nil
	})
	return t, err
}

// RosterSections lists the current-student workbook's sections.
func (ds *Datasets) RosterSections(ctx context.Context) ([]string, error) {
	names, _, err := cache.Fetch(ctx, ds.cache, keyRosterSections, ds.store.RosterSections)
	return names, err
}

// Roster is the current-student records of period p, each stamped with the
// Gregorian data year and the semester.
func (ds *Datasets) Roster(ctx context.Context, p period.Period) ([]record.Record, error) {
	if !p.IsComposite() {
		return []record.Record{}, nil
	}
	return ds.fetch(ctx, datasetKey(model.CurrentStudents)+":"+p.Value(), func(ctx context.Context) ([]record.Record, error) {
		names, err := ds.RosterSections(ctx)
		if err != nil {
			return nil, err
		}
		recs, err := ds.store.Roster(ctx, names, p)
		if err != nil {
			return nil, err
		}
		out := make([]record.Record, len(recs))
		for i, r := range recs {
			out[i] = r.With(map[string]any{
				model.FieldDataYear: p.Year,
				model.FieldSemester: p.Semester,
			})
		}
		return out, nil
	})
}

// Resolver indexes the ID mapping for registration number lookups.
func (ds *Datasets) Resolver(ctx context.Context) (identity.Resolver, error) {
	rows, err := ds.IDMapping(ctx)
	if err != nil {
		return nil, err
	}
	return identity.NewMapping(rows), nil
}

// All is the full record set of d. For current students that is the newest
// semester.
func (ds *Datasets) All(ctx context.Context, d model.Domain) ([]record.Record, error) {
	switch d {
	case model.Students:
		return ds.Students(ctx)
	case model.Graduates:
		return ds.Graduates(ctx)
	case model.ExamScores:
		return ds.ExamScores(ctx)
	case model.STScores:
		return ds.STScores(ctx)
	case model.CurrentStudents:
		names, err := ds.RosterSections(ctx)
		if err != nil {
			return nil, err
		}
		ps := period.ScanSections(names)
		if len(ps) == 0 {
			return []record.Record{}, nil
		}
		return ds.Roster(ctx, ps[0])
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownDomain, d)
}

// GroupByGrade buckets roster records by the grade digit that leads 年班.
// Records outside grades 1 to 3 are left out of the grouping.
func GroupByGrade(recs []record.Record) map[string][]record.Record {
	out := map[string][]record.Record{}
	for _, r := range recs {
		class, ok := r.Text(model.FieldClass)
		if !ok {
			continue
		}
		grade, err := strconv.Atoi(class[:1])
		if err != nil || grade < 1 || grade > 3 {
			continue
		}
		key := strconv.Itoa(grade)
		out[key] = append(out[key], r)
	}
	return out
}
