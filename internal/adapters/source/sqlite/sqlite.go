// Package sqlite reads workbooks exported to SQLite files. Each source id
// names a file <id>.db under the configured directory and each table in
// that file is a section.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/pkg/logger"
)

// FileExt is the extension of workbook files.
const FileExt = ".db"

// Source is a source.Source over a directory of SQLite files.
type Source struct {
	dir string
	log logger.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Source reading from dir.
func New(dir string, opts ...Option) *Source {
	s := &Source{dir: dir, log: logger.Get(), dbs: make(map[string]*sql.DB)}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("sqlite")
	return s
}

// Path returns the file backing sourceID.
func (s *Source) Path(sourceID string) string {
	return filepath.Join(s.dir, sourceID+FileExt)
}

func (s *Source) open(ctx context.Context, sourceID string) (*sql.DB, error) {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return nil, source.ErrEmptySourceID
	}
	if filepath.Base(sourceID) != sourceID {
		return nil, fmt.Errorf("%w: invalid source id %q", source.ErrNotFound, sourceID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[sourceID]; ok {
		return db, nil
	}
	path := s.Path(sourceID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, path)
		}
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.dbs[sourceID] = db
	s.log.Info(ctx, "workbook opened", logger.String("path", path))
	return db, nil
}

// ReadTable implements source.Source. The column names form the header
// row.
func (s *Source) ReadTable(ctx context.Context, sourceID, section string) ([][]any, error) {
	db, err := s.open(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	var exists int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name = ?`, section).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", section, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s %q", source.ErrNotFound, sourceID, section)
	}

	rows, err := db.QueryContext(ctx, `SELECT * FROM `+quoteIdent(section))
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", section, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	out := [][]any{header}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", section, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %q: %w", section, err)
	}
	s.log.Debug(ctx, "table read",
		logger.String("workbook", sourceID),
		logger.String("table", section),
		logger.Int("rows", len(out)-1),
	)
	return out, nil
}

// ListSections implements source.Source.
func (s *Source) ListSections(ctx context.Context, sourceID string) ([]string, error) {
	db, err := s.open(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		if strings.HasPrefix(n, "sqlite_") {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, rows.Err()
}

// Close closes every opened file.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(s.dbs, id)
	}
	return errors.Join(errs...)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
