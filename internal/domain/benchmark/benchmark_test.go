package benchmark_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/schoolboard/internal/domain/benchmark"
	"github.com/okian/schoolboard/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func row(p any, subject, band string, score any) record.Record {
	r := record.Record{}
	if p != nil {
		r[benchmark.FieldPeriod] = p
	}
	if subject != "" {
		r[benchmark.FieldSubject] = subject
	}
	if band != "" {
		r[benchmark.FieldBand] = band
	}
	if score != nil {
		r[benchmark.FieldScore] = score
	}
	return r
}

func TestBuild(t *testing.T) {
	Convey("Given well-formed benchmark rows", t, func() {
		rows := []record.Record{
			row(float64(113), "國文級分", "頂標", float64(13)),
			row(float64(113), "國文", "均標", "10"),
			row("113", "數學A級分", "前標", 11.0),
			row(float64(112), "英文級分", "底標", float64(4)),
		}

		Convey("When built", func() {
			table := benchmark.Build(rows)

			Convey("Then each lookup returns the original score", func() {
				v, ok := table.Lookup("113", "國文", benchmark.Top)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, float64(13))

				v, ok = table.Lookup("113", "國文級分", benchmark.Average)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, float64(10))

				v, ok = table.Lookup("113", "數學A", benchmark.Front)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, float64(11))

				v, ok = table.Lookup("112", "英文", benchmark.Bottom)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, float64(4))
			})

			Convey("Then suffixed and plain subjects share one key", func() {
				So(table["113"], ShouldHaveLength, 2)
			})

			Convey("Then building twice gives an identical table", func() {
				So(cmp.Diff(table, benchmark.Build(rows)), ShouldBeEmpty)
			})
		})
	})

	Convey("Given malformed rows", t, func() {
		rows := []record.Record{
			row(nil, "國文", "頂標", 13.0),
			row(113.0, "", "頂標", 13.0),
			row(113.0, "國文", "", 13.0),
			row(113.0, "國文", "頂標", nil),
			row(113.0, "國文", "高標", 13.0),
		}

		Convey("Then they contribute nothing", func() {
			So(benchmark.Build(rows), ShouldBeEmpty)
		})
	})

	Convey("Given duplicate triples and a bad score", t, func() {
		rows := []record.Record{
			row(113.0, "自然", "後標", 6.0),
			row(113.0, "自然級分", "後標", 7.0),
			row(113.0, "社會", "後標", "n/a"),
		}
		table := benchmark.Build(rows)

		Convey("Then the last row wins", func() {
			v, _ := table.Lookup("113", "自然", benchmark.Back)
			So(v, ShouldEqual, float64(7))
		})

		Convey("Then the bad score falls back to zero", func() {
			v, ok := table.Lookup("113", "社會", benchmark.Back)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, float64(0))
		})
	})
}

func TestParseBand(t *testing.T) {
	Convey("All five labels map to codes", t, func() {
		for label, want := range map[string]benchmark.Band{
			"頂標": benchmark.Top, "前標": benchmark.Front, "均標": benchmark.Average,
			"後標": benchmark.Back, "底標": benchmark.Bottom,
		} {
			got, ok := benchmark.ParseBand(label)
			So(ok, ShouldBeTrue)
			So(got, ShouldEqual, want)
		}
		_, ok := benchmark.ParseBand("高標")
		So(ok, ShouldBeFalse)
	})
}
