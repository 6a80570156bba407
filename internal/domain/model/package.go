package model

import (
	"encoding/json"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/okian/schoolboard/internal/domain/benchmark"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
)

// Section is one dataset inside a package. Optional parts are omitted from
// JSON when nil; an empty non-nil map still renders as {}.
type Section struct {
	Data           []record.Record
	Filters        map[string][]string
	Benchmarks     benchmark.Table
	ByYearSemester map[string]map[string][]record.Record
	AvailableYears []period.Period
}

// Clone deep-copies the section. Benchmarks are shared; nothing writes to
// a built table.
func (s Section) Clone() Section {
	out := Section{
		Data:           cloneRecords(s.Data),
		Benchmarks:     s.Benchmarks,
		AvailableYears: slices.Clone(s.AvailableYears),
	}
	if s.Filters != nil {
		out.Filters = make(map[string][]string, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = slices.Clone(v)
		}
	}
	if s.ByYearSemester != nil {
		out.ByYearSemester = make(map[string]map[string][]record.Record, len(s.ByYearSemester))
		for p, grades := range s.ByYearSemester {
			g := make(map[string][]record.Record, len(grades))
			for k, recs := range grades {
				g[k] = cloneRecords(recs)
			}
			out.ByYearSemester[p] = g
		}
	}
	return out
}

func cloneRecords(recs []record.Record) []record.Record {
	if recs == nil {
		return nil
	}
	out := make([]record.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// Count is the number of records.
func (s Section) Count() int { return len(s.Data) }

// MarshalJSON implements json.Marshaler.
func (s Section) MarshalJSON() ([]byte, error) {
	data := s.Data
	if data == nil {
		data = []record.Record{}
	}
	out := map[string]any{
		"data":  data,
		"count": len(data),
	}
	if s.Filters != nil {
		out["filters"] = s.Filters
	}
	if s.Benchmarks != nil {
		out["benchmarks"] = s.Benchmarks
	}
	if s.ByYearSemester != nil {
		out["byYearSemester"] = s.ByYearSemester
	}
	if s.AvailableYears != nil {
		out["availableYears"] = s.AvailableYears
	}
	return json.Marshal(out)
}

// EmptySection is the section served when a domain could not be loaded.
func EmptySection(name string) Section {
	s := Section{Data: []record.Record{}}
	switch name {
	case string(Students), string(Graduates):
		s.Filters = map[string][]string{}
	case string(ExamScores), string(STScores):
		s.Benchmarks = benchmark.Table{}
	case string(CurrentStudents):
		s.ByYearSemester = map[string]map[string][]record.Record{}
		s.AvailableYears = []period.Period{}
	}
	return s
}

// Metadata describes how a package was built.
type Metadata struct {
	TotalRecords int `json:"totalRecords"`
	// Queries counts source reads issued while building the package's
	// sections. Cache hits are not counted.
	Queries int `json:"queries"`
	// LoadDuration is the wall-clock time of the call that returned the
	// package, in milliseconds.
	LoadDuration int64 `json:"loadDuration"`
	Cached       bool  `json:"cached"`
}

// Package is the response for one (period, dashboard type) request.
// Sections accumulate across dashboard types requested for the same period.
type Package struct {
	Sections map[string]Section
	Metadata Metadata

	loadedAt map[string]time.Time
}

// NewPackage returns an empty package.
func NewPackage() *Package {
	return &Package{Sections: map[string]Section{}, loadedAt: map[string]time.Time{}}
}

// Put stores a section loaded at t.
func (p *Package) Put(name string, s Section, t time.Time) {
	p.Sections[name] = s
	if p.loadedAt == nil {
		p.loadedAt = map[string]time.Time{}
	}
	p.loadedAt[name] = t
}

// Fresh reports whether the named section is present and was loaded less
// than ttl before now.
func (p *Package) Fresh(name string, now time.Time, ttl time.Duration) bool {
	if _, ok := p.Sections[name]; !ok {
		return false
	}
	at, ok := p.loadedAt[name]
	return ok && now.Sub(at) < ttl
}

// Has reports whether every named section is present.
func (p *Package) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := p.Sections[n]; !ok {
			return false
		}
	}
	return true
}

// Section returns a section by name.
func (p *Package) Section(name string) (Section, bool) {
	s, ok := p.Sections[name]
	return s, ok
}

// Names lists the section names in sorted order.
func (p *Package) Names() []string {
	out := make([]string, 0, len(p.Sections))
	for n := range p.Sections {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// TotalRecords sums the section counts.
func (p *Package) TotalRecords() int {
	n := 0
	for _, s := range p.Sections {
		n += s.Count()
	}
	return n
}

// Clone deep-copies the package. Records, filters and groupings of the
// copy can be changed without touching p.
func (p *Package) Clone() *Package {
	if p == nil {
		return NewPackage()
	}
	out := &Package{
		Sections: make(map[string]Section, len(p.Sections)),
		Metadata: p.Metadata,
		loadedAt: maps.Clone(p.loadedAt),
	}
	if out.loadedAt == nil {
		out.loadedAt = map[string]time.Time{}
	}
	for k, v := range p.Sections {
		out.Sections[k] = v.Clone()
	}
	return out
}

// MarshalJSON flattens sections next to "metadata".
func (p *Package) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Sections)+1)
	for k, v := range p.Sections {
		out[k] = v
	}
	out["metadata"] = p.Metadata
	return json.Marshal(out)
}

// AvailableYears lists the periods of every domain plus their year union.
type AvailableYears struct {
	Students        []period.Period `json:"students"`
	Graduates       []period.Period `json:"graduates"`
	ExamScores      []period.Period `json:"examScores"`
	STScores        []period.Period `json:"stScores"`
	CurrentStudents []period.Period `json:"currentStudents"`
	All             []int           `json:"all"`
}

// Set stores the periods of one domain.
func (a *AvailableYears) Set(d Domain, ps []period.Period) {
	if ps == nil {
		ps = []period.Period{}
	}
	switch d {
	case Students:
		a.Students = ps
	case Graduates:
		a.Graduates = ps
	case ExamScores:
		a.ExamScores = ps
	case STScores:
		a.STScores = ps
	case CurrentStudents:
		a.CurrentStudents = ps
	}
}

// Union fills All from the per-domain periods.
func (a *AvailableYears) Union() {
	a.All = period.UnionYears(a.Students, a.Graduates, a.ExamScores, a.STScores, a.CurrentStudents)
}
