// Package period models reporting periods: bare years and local
// year-semester tokens such as "114-1".
package period

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Latest selects the newest period a domain has.
const Latest = "latest"

// LocalYearOffset converts a local (ROC) year to a Gregorian year.
const LocalYearOffset = 1911

// MaxLocalYear bounds the local years a token may name.
const MaxLocalYear = 300

// Semester values.
const (
	FirstSemester  = 1
	SecondSemester = 2
)

// ErrInvalidToken reports a period token that does not parse.
var ErrInvalidToken = errors.New("invalid period token")

// Period is either a bare year or a year-semester pair. A bare year has
// Semester == 0 and Year holds the value as found in the source. A composite
// period keeps the local year and derives the Gregorian one.
type Period struct {
	Year      int
	LocalYear int
	Semester  int
}

// FromYear builds a bare-year period.
func FromYear(year int) Period { return Period{Year: year} }

// FromLocal builds a composite period from a local year and semester.
func FromLocal(localYear, semester int) (Period, error) {
	if semester != FirstSemester && semester != SecondSemester {
		return Period{}, fmt.Errorf("%w: semester %d", ErrInvalidToken, semester)
	}
	if localYear <= 0 {
		return Period{}, fmt.Errorf("%w: year %d", ErrInvalidToken, localYear)
	}
	return Period{Year: localYear + LocalYearOffset, LocalYear: localYear, Semester: semester}, nil
}

var tokenPattern = regexp.MustCompile(`^(\d{3})-(\d)$`)

// Parse reads "114-1" as a composite period and "2024" as a bare year.
func Parse(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if m := tokenPattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		sem, _ := strconv.Atoi(m[2])
		return FromLocal(y, sem)
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidToken, s)
	}
	if !PlausibleYear(y) {
		return Period{}, fmt.Errorf("%w: year %d out of range", ErrInvalidToken, y)
	}
	return FromYear(y), nil
}

// PlausibleYear reports whether y reads as a local year or as the
// Gregorian year of one.
func PlausibleYear(y int) bool {
	switch {
	case y >= 1 && y <= MaxLocalYear:
		return true
	case y > LocalYearOffset && y <= LocalYearOffset+MaxLocalYear:
		return true
	}
	return false
}

// IsComposite reports whether p carries a semester.
func (p Period) IsComposite() bool { return p.Semester != 0 }

// Value is the token form: "114-1" or "2024".
func (p Period) Value() string {
	if p.IsComposite() {
		return fmt.Sprintf("%d-%d", p.LocalYear, p.Semester)
	}
	return strconv.Itoa(p.Year)
}

// String implements fmt.Stringer.
func (p Period) String() string { return p.Value() }

// SemesterName is the display name of the semester.
func (p Period) SemesterName() string {
	switch p.Semester {
	case FirstSemester:
		return "第一學期"
	case SecondSemester:
		return "第二學期"
	}
	return ""
}

// Label is the human label, e.g. "2025第一學期".
func (p Period) Label() string {
	if !p.IsComposite() {
		return strconv.Itoa(p.Year)
	}
	return strconv.Itoa(p.Year) + p.SemesterName()
}

type compositeJSON struct {
	Year           int    `json:"year"`
	LocalYear      int    `json:"localYear"`
	Semester       int    `json:"semester"`
	SemesterName   string `json:"semesterName"`
	Label          string `json:"label"`
	Value          string `json:"value"`
	OriginalFormat string `json:"originalFormat"`
}

// MarshalJSON renders bare years as numbers and composite periods as objects.
func (p Period) MarshalJSON() ([]byte, error) {
	if !p.IsComposite() {
		return json.Marshal(p.Year)
	}
	return json.Marshal(compositeJSON{
		Year:           p.Year,
		LocalYear:      p.LocalYear,
		Semester:       p.Semester,
		SemesterName:   p.SemesterName(),
		Label:          p.Label(),
		Value:          p.Value(),
		OriginalFormat: "roc-sem",
	})
}

// UnmarshalJSON accepts both shapes produced by MarshalJSON.
func (p *Period) UnmarshalJSON(b []byte) error {
	var year int
	if err := json.Unmarshal(b, &year); err == nil {
		*p = FromYear(year)
		return nil
	}
	var c compositeJSON
	if err := json.Unmarshal(b, &c); err != nil {
		return err
	}
	v, err := FromLocal(c.LocalYear, c.Semester)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Less orders newest first: year desc, then semester desc.
func Less(a, b Period) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	return a.Semester > b.Semester
}

// SortDesc sorts newest first and removes duplicates.
func SortDesc(ps []Period) []Period {
	seen := make(map[Period]struct{}, len(ps))
	out := make([]Period, 0, len(ps))
	for _, p := range ps {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// UnionYears returns the descending set union of every period's Year.
func UnionYears(groups ...[]Period) []int {
	seen := make(map[int]struct{})
	for _, g := range groups {
		for _, p := range g {
			seen[p.Year] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
