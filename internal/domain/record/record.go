// Package record models one row of a domain table as a sparse field map and
// provides the normalizer that turns raw rows into records.
package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record maps field names to scalar values. A field that is not in the map
// is absent, which is different from a field stored with a zero value.
type Record map[string]any

// Get returns the raw value and whether the field is present.
func (r Record) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Has reports whether field is present.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Text returns the field rendered as a trimmed string. Absent fields and
// values that render empty report false.
func (r Record) Text(field string) (string, bool) {
	v, ok := r[field]
	if !ok {
		return "", false
	}
	s := strings.TrimSpace(Format(v))
	return s, s != ""
}

// First returns the first present, non-empty field among candidates.
func (r Record) First(candidates ...string) (string, bool) {
	for _, f := range candidates {
		if s, ok := r.Text(f); ok {
			return s, true
		}
	}
	return "", false
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// With returns a copy of r with fields set. r is left untouched.
func (r Record) With(fields map[string]any) Record {
	out := make(Record, len(r)+len(fields))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// Format renders a cell value the way a spreadsheet would display it:
// integral floats lose their fraction, nil becomes the empty string.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return Format(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Int parses the field as an integer year-like value.
func (r Record) Int(field string) (int, bool) {
	s, ok := r.Text(field)
	if !ok {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Float parses the field as a number.
func (r Record) Float(field string) (float64, bool) {
	s, ok := r.Text(field)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
