package record

import (
	"sort"
	"strings"
)

// ToRecords zips rows into records. With hasHeaders the first row names the
// fields and columns with a blank header are ignored; without it columns are
// named by spreadsheet letters (A, B, ..., AA). Blank cells are left out of
// the record and rows with no populated field are dropped.
func ToRecords(rows [][]any, hasHeaders bool) []Record {
	if len(rows) == 0 {
		return []Record{}
	}

	var headers []string
	body := rows
	if hasHeaders {
		headers = make([]string, len(rows[0]))
		for i, h := range rows[0] {
			headers[i] = strings.TrimSpace(Format(h))
		}
		body = rows[1:]
	}

	out := make([]Record, 0, len(body))
	for _, row := range body {
		rec := make(Record, len(row))
		for i, cell := range row {
			if isBlank(cell) {
				continue
			}
			name := ""
			if hasHeaders {
				if i >= len(headers) {
					continue
				}
				name = headers[i]
			} else {
				name = ColumnName(i)
			}
			if name == "" {
				continue
			}
			rec[name] = cell
		}
		if len(rec) > 0 {
			out = append(out, rec)
		}
	}
	return out
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	}
	return false
}

// ColumnName returns the spreadsheet letter name for a zero-based column.
func ColumnName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

// JoinSpec describes how secondary records attach to primary ones.
type JoinSpec struct {
	// SecondaryKey is the lookup field on secondary records.
	SecondaryKey string
	// PrimaryKeys is tried in order to find the key on a primary record.
	PrimaryKeys []string
	// Fields maps a secondary field to the primary field it fills.
	Fields map[string]string
}

// JoinByKey attaches mapped secondary fields to every primary record whose
// key matches. Existing primary fields win over joined ones. Unmatched
// records pass through unchanged. Later secondary rows replace earlier ones
// with the same key.
func JoinByKey(primary, secondary []Record, spec JoinSpec) []Record {
	lookup := make(map[string]Record, len(secondary))
	for _, s := range secondary {
		if k, ok := s.Text(spec.SecondaryKey); ok {
			lookup[k] = s
		}
	}

	out := make([]Record, len(primary))
	for i, p := range primary {
		key, ok := p.First(spec.PrimaryKeys...)
		match, found := lookup[key]
		if !ok || !found {
			out[i] = p
			continue
		}
		attach := make(map[string]any, len(spec.Fields))
		for from, to := range spec.Fields {
			if p.Has(to) {
				continue
			}
			if v, ok := match[from]; ok {
				attach[to] = v
			}
		}
		if len(attach) == 0 {
			out[i] = p
			continue
		}
		out[i] = p.With(attach)
	}
	return out
}

// FilterEq keeps records whose field renders exactly as value.
func FilterEq(records []Record, field, value string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if s, ok := r.Text(field); ok && s == value {
			out = append(out, r)
		}
	}
	return out
}

// Distinct returns the sorted distinct non-empty values of field.
func Distinct(records []Record, field string) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		if s, ok := r.Text(field); ok {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// BuildFilters collects Distinct values for each field. Fields with no
// values are left out, so an empty dataset yields an empty map.
func BuildFilters(records []Record, fields []string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for _, f := range fields {
		if vals := Distinct(records, f); len(vals) > 0 {
			out[f] = vals
		}
	}
	return out
}

// Search returns records where any field, rendered as text, contains query
// case-insensitively. An empty query matches nothing.
func Search(records []Record, query string) []Record {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Record{}
	if q == "" {
		return out
	}
	for _, r := range records {
		for _, v := range r {
			if strings.Contains(strings.ToLower(Format(v)), q) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
