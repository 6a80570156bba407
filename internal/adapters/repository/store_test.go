package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/schoolboard/internal/adapters/repository"
	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/internal/adapters/source/memory"
	"github.com/okian/schoolboard/internal/config"
	"github.com/okian/schoolboard/internal/domain/model"
	"github.com/okian/schoolboard/internal/domain/period"
	"github.com/okian/schoolboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func workbook() *memory.Workbook {
	wb := memory.New()
	wb.Put("nb", repository.SectionNewbie, [][]any{
		{"身分證統一編號", "姓名", "入學年分"},
		{"A1", "王小明", float64(113)},
		{"B2", "李小華", float64(112)},
		{"", "", ""},
	})
	wb.Put("nb", repository.SectionCoordinates, [][]any{
		{"身分證字號", "地址", "緯度", "經度"},
		{"A1", "台北市", 25.03, 121.56},
	})
	wb.Put("gsat", repository.SectionIDMapping, [][]any{
		{"報名序號", "考試年份", "身分證字號"},
		{"900", "113", "A1"},
		{"901", "", "B2"},
	})
	wb.Put("cur", "學生名單總表 [114-1]", [][]any{{"學號", "年班"}, {"1", "101"}})
	wb.Put("cur", "說明", [][]any{{"x"}})
	return wb
}

func newStore(wb *memory.Workbook, tables config.Tables) *repository.Store {
	return repository.New(wb, tables, repository.WithLogger(logger.NewNop()))
}

func TestStudents(t *testing.T) {
	Convey("Given a newbie workbook with coordinates", t, func() {
		wb := workbook()
		s := newStore(wb, config.Tables{Newbie: "nb"})
		ctx, tally := source.WithTally(context.Background())

		Convey("When students are read", func() {
			recs, err := s.Students(ctx)

			Convey("Then blank rows are dropped and coordinates are joined", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 2)
				So(recs[0][model.FieldLatitude], ShouldEqual, 25.03)
				So(recs[0][model.FieldAddress], ShouldEqual, "台北市")
				So(recs[1].Has(model.FieldLatitude), ShouldBeFalse)
			})

			Convey("Then both reads are counted", func() {
				So(tally.Queries(), ShouldEqual, 2)
				So(wb.Reads(), ShouldEqual, 2)
			})
		})
	})
}

func TestSoftReads(t *testing.T) {
	Convey("Given a store with gaps in its configuration", t, func() {
		wb := workbook()
		s := newStore(wb, config.Tables{Newbie: "nb", Graduate: " ", GSAT: "gsat", ST: "missing"})
		ctx, tally := source.WithTally(context.Background())

		Convey("When an unconfigured table is read", func() {
			recs, err := s.Graduates(ctx)

			Convey("Then the result is empty and no read is issued", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldNotBeNil)
				So(recs, ShouldBeEmpty)
				So(tally.Queries(), ShouldEqual, 0)
			})
		})

		Convey("When the workbook does not exist", func() {
			recs, err := s.STScores(ctx)
			So(err, ShouldBeNil)
			So(recs, ShouldBeEmpty)
			So(tally.Queries(), ShouldEqual, 1)
		})

		Convey("When the source fails", func() {
			wb.Fail("nb", repository.SectionNewbie, errors.New("quota"))
			recs, err := s.Students(ctx)
			So(err, ShouldBeNil)
			So(recs, ShouldBeEmpty)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := s.Students(cctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})

		Convey("When an unknown benchmark is asked for", func() {
			_, err := s.Benchmarks(ctx, "toefl")
			So(errors.Is(err, repository.ErrUnknownTable), ShouldBeTrue)
		})
	})
}

func TestIDMapping(t *testing.T) {
	Convey("Mapping rows missing a key field are dropped", t, func() {
		s := newStore(workbook(), config.Tables{GSAT: "gsat"})
		recs, err := s.IDMapping(context.Background())
		So(err, ShouldBeNil)
		So(recs, ShouldHaveLength, 1)
		So(recs[0]["身分證字號"], ShouldEqual, "A1")
	})
}

func TestRoster(t *testing.T) {
	Convey("Given a current-student workbook", t, func() {
		wb := workbook()
		s := newStore(wb, config.Tables{CurrentStudent: "cur"})
		ctx := context.Background()

		Convey("When the sections are listed and a period is read", func() {
			names, err := s.RosterSections(ctx)
			So(err, ShouldBeNil)
			p, _ := period.Parse("114-1")
			recs, err := s.Roster(ctx, names, p)

			Convey("Then the spaced section name is found", func() {
				So(err, ShouldBeNil)
				So(recs, ShouldHaveLength, 1)
				So(wb.ReadsOf("cur", "學生名單總表 [114-1]"), ShouldEqual, 1)
			})
		})

		Convey("When probing an unconfigured key", func() {
			_, err := s.Probe(ctx, config.KeyGraduate)
			So(errors.Is(err, repository.ErrNotConfigured), ShouldBeTrue)
		})

		Convey("When probing a configured key", func() {
			names, err := s.Probe(ctx, config.KeyCurrentStudent)
			So(err, ShouldBeNil)
			So(names, ShouldHaveLength, 2)
		})
	})
}
