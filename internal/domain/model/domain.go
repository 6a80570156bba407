// Package model contains the domain models passed between layers: domains,
// dashboard types and the data package returned to callers.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDashboard reports a dashboard type outside the fixed set.
var ErrUnknownDashboard = errors.New("unknown dashboard type")

// ErrUnknownDomain reports a domain name outside the fixed set.
var ErrUnknownDomain = errors.New("unknown domain")

// Domain is one of the five record categories.
type Domain string

// Domains.
const (
	Students        Domain = "students"
	Graduates       Domain = "graduates"
	ExamScores      Domain = "examScores"
	STScores        Domain = "stScores"
	CurrentStudents Domain = "currentStudents"
)

// Domains lists every domain in display order.
var Domains = []Domain{Students, Graduates, ExamScores, STScores, CurrentStudents}

// ParseDomain resolves a domain name.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains {
		if string(d) == strings.TrimSpace(s) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

// YearField is the field scanned for periods. CurrentStudents has none: its
// periods are encoded in section names.
func (d Domain) YearField() string {
	switch d {
	case Students:
		return FieldAdmissionYear
	case Graduates:
		return FieldListYear
	case ExamScores, STScores:
		return FieldExamYear
	}
	return ""
}

// DashboardType selects which sections a package carries.
type DashboardType string

// Dashboard types.
const (
	Newbie         DashboardType = "newbie"
	Graduate       DashboardType = "graduate"
	ExamScore      DashboardType = "examScore"
	STScore        DashboardType = "stScore"
	CurrentStudent DashboardType = "currentStudent"
)

// DashboardTypes lists every dashboard type.
var DashboardTypes = []DashboardType{Newbie, Graduate, ExamScore, STScore, CurrentStudent}

// Section names that are not domains.
const SectionIDMapping = "idMapping"

// Layout is what a dashboard type loads.
type Layout struct {
	// Sections are loaded in order.
	Sections []string
	// AllPeriods means the requested period is ignored.
	AllPeriods bool
}

var layouts = map[DashboardType]Layout{
	Newbie:         {Sections: []string{string(Students)}},
	Graduate:       {Sections: []string{string(Graduates)}},
	ExamScore:      {Sections: []string{string(ExamScores), SectionIDMapping}, AllPeriods: true},
	STScore:        {Sections: []string{string(STScores), SectionIDMapping}, AllPeriods: true},
	CurrentStudent: {Sections: []string{string(CurrentStudents)}},
}

// ParseDashboardType resolves a dashboard type name.
func ParseDashboardType(s string) (DashboardType, error) {
	d := DashboardType(strings.TrimSpace(s))
	if _, ok := layouts[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDashboard, s)
	}
	return d, nil
}

// Layout returns the sections d loads.
func (d DashboardType) Layout() (Layout, bool) {
	l, ok := layouts[d]
	return l, ok
}

// WarmJob asks for a package to be assembled ahead of requests.
type WarmJob struct {
	Period    string
	Dashboard DashboardType
	Reason    string
}
