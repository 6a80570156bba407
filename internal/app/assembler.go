package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/schoolboard/internal/adapters/repository"
	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/internal/domain/cache"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
)

// Assembler builds one package per (period, dashboard type). Sections
// loaded for a period are kept in that period's cached package and reused
// by later requests for any dashboard type.
type Assembler struct {
	data     *Datasets
	index    *YearIndex
	cache    *cache.Cache
	parallel bool
	limit    int
	now      func() time.Time
	log      logger.Logger

	locks keyedMutex
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithAssemblerParallelism loads a package's sections concurrently, at most limit
// at a time. A limit below one means no limit.
func WithAssemblerParallelism(enabled bool, limit int) AssemblerOption {
	return func(a *Assembler) {
		a.parallel = enabled
		a.limit = limit
	}
}

// WithAssemblerClock sets the time source used for load durations.
func WithAssemblerClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAssemblerLogger sets the logger.
func WithAssemblerLogger(l logger.Logger) AssemblerOption {
	return func(a *Assembler) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(data *Datasets, index *YearIndex, c *cache.Cache, opts ...AssemblerOption) *Assembler {
	a := &Assembler{data: data, index: index, cache: c, now: time.Now, log: logger.Get()}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.Named("assembler")
	return a
}

// NormalizePeriod maps blank input to "latest" and validates tokens.
func NormalizePeriod(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, period.Latest) {
		return period.Latest, nil
	}
	p, err := period.Parse(raw)
	if err != nil {
		return "", err
	}
	return p.Value(), nil
}

func packageKey(token string) string { return keyPackagePrefix + token }

// AllPeriods is the package token of dashboards that ignore the period.
const AllPeriods = "all"

// Assemble returns the package for token and dashboard type d. A domain
// that fails to load yields an empty section; the call still succeeds. A
// cancelled ctx fails the call and nothing is cached.
func (a *Assembler) Assemble(ctx context.Context, token string, d model.DashboardType) (*model.Package, error) {
	start := a.now()
	layout, ok := d.Layout()
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownDashboard, d)
	}
	token, err := NormalizePeriod(token)
	if err != nil {
		return nil, err
	}
	if layout.AllPeriods {
		token = AllPeriods
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := packageKey(token)
	unlock := a.locks.Lock(key)
	defer unlock()

	prev, hit := cache.Load[*model.Package](a.cache, key)
	missing := a.stale(prev, layout.Sections, start)
	if hit && len(missing) == 0 {
		out := prev.Clone()
		out.Metadata.LoadDuration = a.now().Sub(start).Milliseconds()
		out.Metadata.Cached = true
		a.log.Debug(ctx, "package served from cache",
			logger.String("period", token),
			logger.String("dashboard", string(d)),
		)
		return out, nil
	}

	next := prev.Clone()
	tctx, tally := source.WithTally(ctx)
	loaded, err := a.loadSections(tctx, token, missing)
	if err != nil {
		a.log.Warn(ctx, "package assembly aborted",
			logger.String("period", token),
			logger.String("dashboard", string(d)),
			logger.Error(err),
		)
		return nil, err
	}
	for i, name := range missing {
		next.Put(name, loaded[i], start)
	}

	next.Metadata.Queries += tally.Queries()
	next.Metadata.TotalRecords = next.TotalRecords()
	next.Metadata.Cached = false
	next.Metadata.LoadDuration = a.now().Sub(start).Milliseconds()
	a.cache.Set(key, next)

	metrics.RecordPackageAssembly(string(d), float64(next.Metadata.LoadDuration), next.Metadata.TotalRecords, tally.Queries())
	a.log.Info(ctx, "package assembled",
		logger.String("period", token),
		logger.String("dashboard", string(d)),
		logger.Int("sections", len(missing)),
		logger.Int("records", next.Metadata.TotalRecords),
		logger.Int("queries", tally.Queries()),
		logger.Int("loadDuration", int(next.Metadata.LoadDuration)),
	)
	return next.Clone(), nil
}

// stale lists the named sections of pkg that are absent or were loaded a
// full TTL or more before now.
func (a *Assembler) stale(pkg *model.Package, names []string, now time.Time) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if pkg == nil || !pkg.Fresh(name, now, a.cache.TTL()) {
			out = append(out, name)
		}
	}
	return out
}

// loadSections loads names in order. Domain failures become empty
// sections; only a done ctx is returned as an error.
func (a *Assembler) loadSections(ctx context.Context, token string, names []string) ([]model.Section, error) {
	out := make([]model.Section, len(names))
	load := func(i int) error {
		sec, err := a.loadSection(ctx, token, names[i])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RecordDomainLoadFailure(names[i])
			a.log.Warn(ctx, "section load failed, serving empty section",
				logger.String("section", names[i]),
				logger.String("period", token),
				logger.Error(err),
			)
			sec = model.EmptySection(names[i])
		}
		out[i] = sec
		return nil
	}

	if !a.parallel || len(names) < 2 {
		for i := range names {
			if err := load(i); err != nil {
				return nil, err
			}
		}
		return out, ctx.Err()
	}

	var g errgroup.Group
	if a.limit > 0 {
		g.SetLimit(a.limit)
	}
	for i := range names {
		i := i
		g.Go(func() error { return load(i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

func (a *Assembler) loadSection(ctx context.Context, token, name string) (model.Section, error) {
	switch name {
	case string(model.Students):
		return a.yearSection(ctx, token, model.Students, a.data.Students, model.StudentFilterFields)
	case string(model.Graduates):
		return a.yearSection(ctx, token, model.Graduates, a.data.Graduates, model.GraduateFilterFields)
	case string(model.ExamScores):
		return a.scoreSection(ctx, a.data.ExamScores, repository.GSAT)
	case string(model.STScores):
		return a.scoreSection(ctx, a.data.STScores, repository.ST)
	case model.SectionIDMapping:
		recs, err := a.data.IDMapping(ctx)
		if err != nil {
			return model.Section{}, err
		}
		return model.Section{Data: recs}, nil
	case string(model.CurrentStudents):
		return a.rosterSection(ctx, token)
	}
	return model.Section{}, fmt.Errorf("unknown section %q", name)
}

// yearSection filters a domain dataset to one year and derives its filters.
func (a *Assembler) yearSection(ctx context.Context, token string, d model.Domain,
	load func(context.Context) ([]record.Record, error), filterFields []string,
) (model.Section, error) {
	recs, err := load(ctx)
	if err != nil {
		return model.Section{}, err
	}
	p, ok, err := a.resolve(ctx, token, d)
	if err != nil {
		return model.Section{}, err
	}
	data := []record.Record{}
	if ok {
		data = record.FilterEq(recs, d.YearField(), p.Value())
	}
	return model.Section{Data: data, Filters: record.BuildFilters(data, filterFields)}, nil
}

// scoreSection serves every period of an exam with its benchmarks.
func (a *Assembler) scoreSection(ctx context.Context, load func(context.Context) ([]record.Record, error), kind repository.BenchmarkKind) (model.Section, error) {
	recs, err := load(ctx)
	if err != nil {
		return model.Section{}, err
	}
	bench, err := a.data.Benchmarks(ctx, kind)
	if err != nil {
		return model.Section{}, err
	}
	return model.Section{Data: recs, Benchmarks: bench}, nil
}

func (a *Assembler) rosterSection(ctx context.Context, token string) (model.Section, error) {
	years, err := a.index.Years(ctx, model.CurrentStudents)
	if err != nil {
		return model.Section{}, err
	}
	sec := model.EmptySection(string(model.CurrentStudents))
	sec.AvailableYears = years

	p, ok := pickRosterPeriod(token, years)
	if !ok {
		return sec, nil
	}
	recs, err := a.data.Roster(ctx, p)
	if err != nil {
		return model.Section{}, err
	}
	sec.Data = recs
	sec.ByYearSemester = map[string]map[string][]record.Record{p.Value(): GroupByGrade(recs)}
	return sec, nil
}

// resolve turns a token into a concrete period of d. "latest" is d's newest
// period; ok is false when d has none.
func (a *Assembler) resolve(ctx context.Context, token string, d model.Domain) (period.Period, bool, error) {
	if token != period.Latest {
		p, err := period.Parse(token)
		if err != nil {
			return period.Period{}, false, err
		}
		return p, true, nil
	}
	return a.index.Latest(ctx, d)
}

// pickRosterPeriod maps a token onto a roster period. A bare year selects
// that year's newest semester, matching either the local or the Gregorian
// year.
func pickRosterPeriod(token string, years []period.Period) (period.Period, bool) {
	if token == period.Latest {
		if len(years) == 0 {
			return period.Period{}, false
		}
		return years[0], true
	}
	p, err := period.Parse(token)
	if err != nil {
		return period.Period{}, false
	}
	if p.IsComposite() {
		return p, true
	}
	for _, y := range years {
		if y.LocalYear == p.Year || y.Year == p.Year {
			return y, true
		}
	}
	return period.Period{}, false
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires key and returns its release func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
