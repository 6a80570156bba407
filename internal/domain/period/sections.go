package period

import (
	"regexp"
	"strconv"
)

// RosterPrefix names the per-semester current-student sections.
const RosterPrefix = "學生名單總表"

// Roster section names look like 學生名單總表[114-1]. Whitespace before the
// bracket and full-width brackets are tolerated.
var rosterPattern = regexp.MustCompile(RosterPrefix + `\s*[\[［]\s*(\d{3})-(\d)\s*[\]］]`)

// FromSectionName extracts the composite period encoded in a roster
// section name.
func FromSectionName(name string) (Period, bool) {
	m := rosterPattern.FindStringSubmatch(name)
	if m == nil {
		return Period{}, false
	}
	y, _ := strconv.Atoi(m[1])
	sem, _ := strconv.Atoi(m[2])
	p, err := FromLocal(y, sem)
	if err != nil {
		return Period{}, false
	}
	return p, true
}

// ScanSections collects the distinct roster periods among names, newest
// first. Names that do not match are ignored.
func ScanSections(names []string) []Period {
	found := make([]Period, 0, len(names))
	for _, n := range names {
		if p, ok := FromSectionName(n); ok {
			found = append(found, p)
		}
	}
	return SortDesc(found)
}

// SectionName is the canonical roster section for a composite period.
func SectionName(p Period) string {
	return RosterPrefix + "[" + p.Value() + "]"
}

// Locate finds the section among names that encodes p, falling back to the
// canonical name when none does.
func Locate(names []string, p Period) string {
	for _, n := range names {
		if q, ok := FromSectionName(n); ok && q == p {
			return n
		}
	}
	return SectionName(p)
}
