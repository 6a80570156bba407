// Package benchmark folds flat percentile-band rows into a nested
// period -> subject -> band -> score table.
package benchmark

import (
	"strconv"
	"strings"

	"github.com/okian/schoolboard/internal/domain/record"
)

// Band is one of the five national percentile bands.
type Band string

// Bands.
const (
	Top     Band = "top"
	Front   Band = "front"
	Average Band = "average"
	Back    Band = "back"
	Bottom  Band = "bottom"
)

// Row fields.
const (
	FieldPeriod  = "年分"
	FieldSubject = "科目"
	FieldBand    = "五標"
	FieldScore   = "分數"
)

// LevelSuffix is stripped from subject names ("國文級分" -> "國文").
const LevelSuffix = "級分"

var bandLabels = map[string]Band{
	"頂標": Top,
	"前標": Front,
	"均標": Average,
	"後標": Back,
	"底標": Bottom,
}

// ParseBand maps a band label to its code.
func ParseBand(label string) (Band, bool) {
	b, ok := bandLabels[strings.TrimSpace(label)]
	return b, ok
}

// Table is period -> subject -> band -> score.
type Table map[string]map[string]map[Band]float64

// Build folds rows into a Table. Rows missing any of the four fields or
// carrying an unknown band are skipped. Unparseable scores become 0. Later
// rows overwrite earlier ones for the same triple.
func Build(rows []record.Record) Table {
	t := Table{}
	for _, r := range rows {
		p, ok1 := r.Text(FieldPeriod)
		subject, ok2 := r.Text(FieldSubject)
		label, ok3 := r.Text(FieldBand)
		if !ok1 || !ok2 || !ok3 || !r.Has(FieldScore) {
			continue
		}
		band, ok := ParseBand(label)
		if !ok {
			continue
		}
		subject = NormalizeSubject(subject)
		if subject == "" {
			continue
		}
		if t[p] == nil {
			t[p] = map[string]map[Band]float64{}
		}
		if t[p][subject] == nil {
			t[p][subject] = map[Band]float64{}
		}
		t[p][subject][band] = score(r[FieldScore])
	}
	return t
}

// NormalizeSubject strips the level suffix.
func NormalizeSubject(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), LevelSuffix))
}

func score(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(record.Format(v)), 64)
	if err != nil {
		return 0
	}
	return f
}

// Lookup returns the score for a period, subject and band. The subject may
// still carry the level suffix.
func (t Table) Lookup(period, subject string, band Band) (float64, bool) {
	subjects, ok := t[period]
	if !ok {
		return 0, false
	}
	bands, ok := subjects[NormalizeSubject(subject)]
	if !ok {
		return 0, false
	}
	v, ok := bands[band]
	return v, ok
}
