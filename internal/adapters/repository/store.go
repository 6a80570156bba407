// Package repository reads the dashboard's domain tables from a tabular
// source. Reads are soft: a missing table, a failed read or an empty
// section yields an empty result and a warning. Only context cancellation
// is returned as an error.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/internal/config"
	"github.com/okian/schoolboard/internal/domain/identity"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
)

// BenchmarkKind selects the benchmark table.
type BenchmarkKind string

// Benchmark kinds.
const (
	GSAT BenchmarkKind = "gsat"
	ST   BenchmarkKind = "st"
)

// Store reads domain tables.
type Store struct {
	src     source.Source
	tables  config.Tables
	timeout time.Duration
	log     logger.Logger
}

// New creates a Store.
func New(src source.Source, tables config.Tables, opts ...Option) *Store {
	s := &Store{src: src, tables: tables, timeout: 20 * time.Second, log: logger.Get()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("repository")
	return s
}

// Students reads the admissions table joined with home coordinates.
func (s *Store) Students(ctx context.Context) ([]record.Record, error) {
	students, err := s.readTable(ctx, config.KeyNewbie, SectionNewbie)
	if err != nil {
		return nil, err
	}
	coords, err := s.readTable(ctx, config.KeyNewbie, SectionCoordinates)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 || len(coords) == 0 {
		return students, nil
	}
	return record.JoinByKey(students, coords, record.JoinSpec{
		SecondaryKey: coordKey,
		PrimaryKeys:  []string{model.FieldUnifiedID, model.FieldNationalID},
		Fields: map[string]string{
			coordAddress:   model.FieldAddress,
			coordLatitude:  model.FieldLatitude,
			coordLongitude: model.FieldLongitude,
		},
	}), nil
}

// Graduates reads the admission results table.
func (s *Store) Graduates(ctx context.Context) ([]record.Record, error) {
	return s.readTable(ctx, config.KeyGraduate, SectionGraduates)
}

// ExamScores reads every year of GSAT scores.
func (s *Store) ExamScores(ctx context.Context) ([]record.Record, error) {
	return s.readTable(ctx, config.KeyGSAT, SectionGSATScores)
}

// STScores reads every year of subject-test scores.
func (s *Store) STScores(ctx context.Context) ([]record.Record, error) {
	return s.readTable(ctx, config.KeyST, SectionSTScores)
}

// Benchmarks reads the raw national band rows of one exam.
func (s *Store) Benchmarks(ctx context.Context, kind BenchmarkKind) ([]record.Record, error) {
	switch kind {
	case GSAT:
		return s.readTable(ctx, config.KeyGSAT, SectionGSATBands)
	case ST:
		return s.readTable(ctx, config.KeyST, SectionSTBands)
	}
	return nil, fmt.Errorf("%w: benchmark %q", ErrUnknownTable, kind)
}

// IDMapping reads the registration number to national ID table. Rows
// missing any of the three key fields are dropped.
func (s *Store) IDMapping(ctx context.Context) ([]record.Record, error) {
	rows, err := s.readTable(ctx, config.KeyGSAT, SectionIDMapping)
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(rows))
	for _, r := range rows {
		if identity.Valid(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// RosterSections lists the sections of the current-student workbook.
func (s *Store) RosterSections(ctx context.Context) ([]string, error) {
	return s.listSections(ctx, config.KeyCurrentStudent)
}

// Roster reads the current-student section of period p. names are the
// workbook's sections; the one encoding p is used, tolerating spacing and
// bracket variants.
func (s *Store) Roster(ctx context.Context, names []string, p period.Period) ([]record.Record, error) {
	return s.readTable(ctx, config.KeyCurrentStudent, period.Locate(names, p))
}

// Probe lists the sections of the table configured under key and returns
// the underlying error instead of degrading.
func (s *Store) Probe(ctx context.Context, key string) ([]string, error) {
	id, ok := s.tables.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, key)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	source.Count(ctx)
	return s.src.ListSections(ctx, id)
}

// readTable performs one bounded read and normalizes the rows.
func (s *Store) readTable(ctx context.Context, key, section string) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, ok := s.tables.Lookup(key)
	if !ok {
		s.degrade(ctx, section, "not_configured", fmt.Errorf("%w: %s", ErrNotConfigured, key))
		return []record.Record{}, nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	source.Count(ctx)
	start := time.Now()
	rows, err := s.src.ReadTable(rctx, id, section)
	metrics.RecordSourceRead(section, float64(time.Since(start).Milliseconds()))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.degrade(ctx, section, reason(err), err)
		return []record.Record{}, nil
	}

	recs := record.ToRecords(rows, true)
	if len(recs) == 0 {
		s.degrade(ctx, section, "empty", nil)
	}
	s.log.Debug(ctx, "table read",
		logger.String("table", key),
		logger.String("section", section),
		logger.Int("records", len(recs)),
	)
	return recs, nil
}

func (s *Store) listSections(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, ok := s.tables.Lookup(key)
	if !ok {
		s.degrade(ctx, key, "not_configured", fmt.Errorf("%w: %s", ErrNotConfigured, key))
		return []string{}, nil
	}
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	source.Count(ctx)
	start := time.Now()
	names, err := s.src.ListSections(rctx, id)
	metrics.RecordSourceRead("sections:"+key, float64(time.Since(start).Milliseconds()))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.degrade(ctx, key, reason(err), err)
		return []string{}, nil
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Store) degrade(ctx context.Context, op, why string, err error) {
	metrics.RecordSourceFailure(op, why)
	fields := []logger.Field{logger.String("section", op), logger.String("reason", why)}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	s.log.Warn(ctx, "source read degraded to empty result", fields...)
}

func reason(err error) string {
	switch {
	case errors.Is(err, source.ErrNotFound):
		return "not_found"
	case errors.Is(err, source.ErrEmptySourceID):
		return "not_configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "read_error"
}
