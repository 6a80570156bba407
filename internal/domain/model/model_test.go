package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDashboardLayouts(t *testing.T) {
	Convey("Given the dashboard types", t, func() {
		Convey("Then exam and subject-test dashboards load all periods with the ID mapping", func() {
			for _, d := range []model.DashboardType{model.ExamScore, model.STScore} {
				l, ok := d.Layout()
				So(ok, ShouldBeTrue)
				So(l.AllPeriods, ShouldBeTrue)
				So(l.Sections, ShouldContain, model.SectionIDMapping)
			}
		})

		Convey("Then newbie loads only students", func() {
			l, _ := model.Newbie.Layout()
			So(l.Sections, ShouldResemble, []string{"students"})
			So(l.AllPeriods, ShouldBeFalse)
		})

		Convey("Then unknown names are rejected", func() {
			_, err := model.ParseDashboardType("leaderboard")
			So(err, ShouldWrap, model.ErrUnknownDashboard)
			d, err := model.ParseDashboardType(" currentStudent ")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, model.CurrentStudent)
		})

		Convey("Then every domain but currentStudents has a year field", func() {
			So(model.Students.YearField(), ShouldEqual, "入學年分")
			So(model.STScores.YearField(), ShouldEqual, "年度")
			So(model.CurrentStudents.YearField(), ShouldBeEmpty)
			_, err := model.ParseDomain("staff")
			So(err, ShouldWrap, model.ErrUnknownDomain)
		})
	})
}

func TestPackageJSON(t *testing.T) {
	Convey("Given a package with an empty students section", t, func() {
		pkg := model.NewPackage()
		pkg.Sections["students"] = model.EmptySection("students")
		pkg.Metadata = model.Metadata{TotalRecords: 0, Queries: 2, LoadDuration: 5}

		b, err := json.Marshal(pkg)
		So(err, ShouldBeNil)
		var got map[string]map[string]any
		So(json.Unmarshal(b, &got), ShouldBeNil)

		Convey("Then data is an empty array and filters an empty object", func() {
			So(got["students"]["data"], ShouldResemble, []any{})
			So(got["students"]["filters"], ShouldResemble, map[string]any{})
			So(got["students"]["count"], ShouldEqual, float64(0))
			So(got["students"], ShouldNotContainKey, "benchmarks")
		})

		Convey("Then metadata sits next to the sections", func() {
			So(got["metadata"]["queries"], ShouldEqual, float64(2))
			So(got["metadata"]["loadDuration"], ShouldEqual, float64(5))
		})
	})

	Convey("Given a section with a nil data slice", t, func() {
		b, err := json.Marshal(model.Section{})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"count":0,"data":[]}`)
	})
}

func TestPackageClone(t *testing.T) {
	Convey("Given a package", t, func() {
		pkg := model.NewPackage()
		pkg.Sections["graduates"] = model.Section{Data: []record.Record{{"姓名": "王"}}}
		pkg.Metadata.Queries = 1

		Convey("When cloned and the clone gains a section", func() {
			c := pkg.Clone()
			c.Sections["students"] = model.EmptySection("students")
			c.Metadata.Queries = 3

			Convey("Then the original is untouched", func() {
				So(pkg.Has("students"), ShouldBeFalse)
				So(pkg.Metadata.Queries, ShouldEqual, 1)
				So(c.Has("students", "graduates"), ShouldBeTrue)
				So(c.Names(), ShouldResemble, []string{"graduates", "students"})
				So(c.TotalRecords(), ShouldEqual, 1)
			})
		})

		Convey("When a record of the clone is edited", func() {
			c := pkg.Clone()
			c.Sections["graduates"].Data[0]["姓名"] = "李"

			Convey("Then the original record keeps its value", func() {
				So(pkg.Sections["graduates"].Data[0]["姓名"], ShouldEqual, "王")
			})
		})
	})
}

func TestSectionFreshness(t *testing.T) {
	Convey("Given sections loaded at different times", t, func() {
		t0 := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
		pkg := model.NewPackage()
		pkg.Put("students", model.EmptySection("students"), t0)
		pkg.Put("graduates", model.EmptySection("graduates"), t0.Add(20*time.Minute))
		ttl := 30 * time.Minute

		Convey("Then each section ages from its own load", func() {
			now := t0.Add(45 * time.Minute)
			So(pkg.Fresh("students", now, ttl), ShouldBeFalse)
			So(pkg.Fresh("graduates", now, ttl), ShouldBeTrue)
			So(pkg.Fresh("examScores", now, ttl), ShouldBeFalse)
		})

		Convey("Then a section expires exactly at the TTL", func() {
			So(pkg.Fresh("students", t0.Add(ttl-time.Nanosecond), ttl), ShouldBeTrue)
			So(pkg.Fresh("students", t0.Add(ttl), ttl), ShouldBeFalse)
		})

		Convey("Then load times survive a clone", func() {
			c := pkg.Clone()
			So(c.Fresh("graduates", t0.Add(45*time.Minute), ttl), ShouldBeTrue)
			So(c.Fresh("students", t0.Add(45*time.Minute), ttl), ShouldBeFalse)
		})
	})
}

func TestAvailableYearsUnion(t *testing.T) {
	Convey("Given per-domain periods", t, func() {
		var a model.AvailableYears
		roster, _ := period.FromLocal(114, 1)
		a.Set(model.Students, []period.Period{period.FromYear(2024), period.FromYear(2023)})
		a.Set(model.ExamScores, []period.Period{period.FromYear(2024)})
		a.Set(model.CurrentStudents, []period.Period{roster})
		a.Set(model.Graduates, nil)
		a.Union()

		Convey("Then all is the descending distinct union", func() {
			So(a.All, ShouldResemble, []int{2025, 2024, 2023})
			So(a.Graduates, ShouldNotBeNil)
			So(a.Graduates, ShouldBeEmpty)
		})
	})
}
