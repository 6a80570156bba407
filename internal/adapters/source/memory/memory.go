// Package memory is an in-process workbook source. It backs fixtures and
// tests: reads are counted and failures can be injected per section.
package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/okian/schoolboard/internal/adapters/source"
)

type sheet struct {
	name string
	rows [][]any
}

// Workbook maps source ids to ordered sheets.
type Workbook struct {
	mu       sync.RWMutex
	books    map[string][]sheet
	failures map[string]error
	reads    map[string]int
	lists    int
}

// New returns an empty Workbook.
func New() *Workbook {
	return &Workbook{
		books:    make(map[string][]sheet),
		failures: make(map[string]error),
		reads:    make(map[string]int),
	}
}

func key(sourceID, section string) string { return sourceID + "\x00" + section }

// Put stores rows under sourceID/section, replacing any previous sheet of
// that name.
func (w *Workbook) Put(sourceID, section string, rows [][]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	sheets := w.books[sourceID]
	for i := range sheets {
		if sheets[i].name == section {
			sheets[i].rows = rows
			return
		}
	}
	w.books[sourceID] = append(sheets, sheet{name: section, rows: rows})
}

// Fail makes reads of sourceID/section return err. An empty section fails
// every read and listing of sourceID.
func (w *Workbook) Fail(sourceID, section string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[key(sourceID, section)] = err
}

// Heal removes every injected failure.
func (w *Workbook) Heal() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures = make(map[string]error)
}

// Reads is the total number of ReadTable calls.
func (w *Workbook) Reads() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	n := 0
	for _, c := range w.reads {
		n += c
	}
	return n
}

// ReadsOf is the number of ReadTable calls for one section.
func (w *Workbook) ReadsOf(sourceID, section string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reads[key(sourceID, section)]
}

// Lists is the number of ListSections calls.
func (w *Workbook) Lists() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lists
}

func (w *Workbook) failure(sourceID, section string) error {
	if err := w.failures[key(sourceID, "")]; err != nil {
		return err
	}
	return w.failures[key(sourceID, section)]
}

// ReadTable implements source.Source.
func (w *Workbook) ReadTable(ctx context.Context, sourceID, section string) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reads[key(sourceID, section)]++
	if strings.TrimSpace(sourceID) == "" {
		return nil, source.ErrEmptySourceID
	}
	if err := w.failure(sourceID, section); err != nil {
		return nil, err
	}
	sheets, ok := w.books[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, sourceID)
	}
	for _, s := range sheets {
		if s.name == section {
			out := make([][]any, len(s.rows))
			for i, r := range s.rows {
				out[i] = append([]any(nil), r...)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", source.ErrNotFound, sourceID, section)
}

// ListSections implements source.Source.
func (w *Workbook) ListSections(ctx context.Context, sourceID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lists++
	if strings.TrimSpace(sourceID) == "" {
		return nil, source.ErrEmptySourceID
	}
	if err := w.failures[key(sourceID, "")]; err != nil {
		return nil, err
	}
	sheets, ok := w.books[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, sourceID)
	}
	out := make([]string, len(sheets))
	for i, s := range sheets {
		out[i] = s.name
	}
	return out, nil
}

type fixtureFile struct {
	Sources map[string][]fixtureSheet `yaml:"sources"`
}

type fixtureSheet struct {
	Name string  `yaml:"name"`
	Rows [][]any `yaml:"rows"`
}

// LoadYAML reads a fixture workbook:
//
//	sources:
//	  newbie:
//	    - name: 新生名單彙總表[不輸出]
//	      rows:
//	        - [身分證字號, 姓名, 入學年分]
//	        - [A123456789, 王小明, 113]
func LoadYAML(r io.Reader) (*Workbook, error) {
	var f fixtureFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	w := New()
	for id, sheets := range f.Sources {
		for _, s := range sheets {
			w.Put(id, s.Name, s.Rows)
		}
	}
	return w, nil
}

// LoadFile reads a fixture workbook from path.
func LoadFile(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
