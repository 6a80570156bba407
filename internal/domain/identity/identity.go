// Package identity extracts cross-domain join identifiers from records.
//
// The canonical identifier is the national ID. Each domain has an ordered
// chain of candidate fields; the first populated one wins. Registration
// numbers are resolved to a national ID through the ID mapping table when
// possible. Encrypted IDs and student numbers only ever match identifiers
// of the same kind.
package identity

import (
	"strings"

	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/record"
)

// Kind is the type of an identifier.
type Kind string

// Identifier kinds.
const (
	National      Kind = "national"
	Encrypted     Kind = "encrypted"
	StudentNumber Kind = "studentNumber"
	Registration  Kind = "registration"
)

// Key is an extracted identifier. Keys compare equal only when both kind
// and value match.
type Key struct {
	Kind  Kind
	Value string
}

// String renders the key for logs.
func (k Key) String() string { return string(k.Kind) + ":" + k.Value }

// Candidate is one field in a domain's extraction chain.
type Candidate struct {
	Field string
	Kind  Kind
}

// Policy is an ordered chain of candidates.
type Policy []Candidate

// Registration candidates read the exam year from one of these fields.
var registrationYearFields = []string{model.FieldExamYear, model.FieldMappingYear, "examYear"}

var policies = map[model.Domain]Policy{
	model.Students: {
		{Field: model.FieldUnifiedID, Kind: National},
		{Field: model.FieldNationalID, Kind: National},
		{Field: "nationalId", Kind: National},
	},
	model.Graduates: {
		{Field: model.FieldNationalID, Kind: National},
		{Field: "idNumber", Kind: National},
		{Field: model.FieldEncryptedID, Kind: Encrypted},
	},
	model.ExamScores: {
		{Field: model.FieldNationalID, Kind: National},
		{Field: "idNumber", Kind: National},
		{Field: model.FieldRegistrationNo, Kind: Registration},
		{Field: "registrationNumber", Kind: Registration},
	},
	model.STScores: {
		{Field: model.FieldNationalID, Kind: National},
		{Field: "idNumber", Kind: National},
		{Field: model.FieldRegistrationNo, Kind: Registration},
		{Field: "registrationNumber", Kind: Registration},
	},
	model.CurrentStudents: {
		{Field: model.FieldNationalID, Kind: National},
		{Field: model.FieldUnifiedID, Kind: National},
		{Field: "nationalId", Kind: National},
		{Field: model.FieldStudentNo, Kind: StudentNumber},
	},
}

// PolicyFor returns the extraction chain of d, or nil for unknown domains.
func PolicyFor(d model.Domain) Policy { return policies[d] }

// Resolver maps a registration number in a given exam year to a national
// ID.
type Resolver interface {
	NationalID(registration, year string) (string, bool)
}

// Extract returns the identifier of r under d's policy. res may be nil, in
// which case registration numbers stay unresolved.
func Extract(d model.Domain, r record.Record, res Resolver) (Key, bool) {
	for _, c := range policies[d] {
		v, ok := r.Text(c.Field)
		if !ok {
			continue
		}
		if c.Kind == National {
			v = NormalizeNationalID(v)
		}
		if c.Kind != Registration {
			return Key{Kind: c.Kind, Value: v}, true
		}
		year, _ := r.First(registrationYearFields...)
		if res != nil {
			if id, ok := res.NationalID(v, year); ok {
				return Key{Kind: National, Value: id}, true
			}
		}
		return Key{Kind: Registration, Value: registrationKey(v, year)}, true
	}
	return Key{}, false
}

// NormalizeNationalID upper-cases and trims an ID.
func NormalizeNationalID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func registrationKey(reg, year string) string {
	return strings.TrimSpace(year) + "/" + strings.TrimSpace(reg)
}

// Mapping resolves registration numbers through the ID mapping table.
type Mapping struct {
	byKey map[string]string
}

// NewMapping indexes mapping rows. Rows missing the registration number,
// the exam year or the national ID are ignored.
func NewMapping(rows []record.Record) *Mapping {
	m := &Mapping{byKey: make(map[string]string, len(rows))}
	for _, r := range rows {
		reg, ok1 := r.Text(model.FieldRegistrationNo)
		year, ok2 := r.Text(model.FieldMappingYear)
		id, ok3 := r.Text(model.FieldNationalID)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		m.byKey[registrationKey(reg, year)] = NormalizeNationalID(id)
	}
	return m
}

// Len is the number of indexed rows.
func (m *Mapping) Len() int { return len(m.byKey) }

// NationalID implements Resolver.
func (m *Mapping) NationalID(registration, year string) (string, bool) {
	if m == nil {
		return "", false
	}
	id, ok := m.byKey[registrationKey(registration, year)]
	return id, ok
}

// Valid reports whether a mapping row carries every required field.
func Valid(r record.Record) bool {
	for _, f := range []string{model.FieldRegistrationNo, model.FieldMappingYear, model.FieldNationalID} {
		if _, ok := r.Text(f); !ok {
			return false
		}
	}
	return true
}
