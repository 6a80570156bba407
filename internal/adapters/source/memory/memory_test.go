package memory_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/schoolboard/internal/adapters/source"
	"github.com/okian/schoolboard/internal/adapters/source/memory"
	. "github.com/smartystreets/goconvey/convey"
)

const fixture = `
sources:
  newbie:
    - name: 新生名單彙總表[不輸出]
      rows:
        - [身分證字號, 姓名, 入學年分]
        - [A123456789, 王小明, 113]
    - name: 學生住址座標[不輸出]
      rows:
        - [身分證字號, 緯度, 經度]
        - [A123456789, 25.03, 121.56]
`

func TestWorkbook(t *testing.T) {
	Convey("Given a workbook loaded from YAML", t, func() {
		wb, err := memory.LoadYAML(strings.NewReader(fixture))
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When a section is read", func() {
			rows, err := wb.ReadTable(ctx, "newbie", "新生名單彙總表[不輸出]")

			Convey("Then scalars keep their YAML types and the read is counted", func() {
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[1][2], ShouldEqual, 113)
				So(wb.Reads(), ShouldEqual, 1)
				So(wb.ReadsOf("newbie", "新生名單彙總表[不輸出]"), ShouldEqual, 1)
			})

			Convey("Then mutating the result leaves the workbook alone", func() {
				rows[1][1] = "changed"
				again, _ := wb.ReadTable(ctx, "newbie", "新生名單彙總表[不輸出]")
				So(again[1][1], ShouldEqual, "王小明")
			})
		})

		Convey("When sections are listed", func() {
			names, err := wb.ListSections(ctx, "newbie")
			So(err, ShouldBeNil)
			So(names, ShouldResemble, []string{"新生名單彙總表[不輸出]", "學生住址座標[不輸出]"})
			So(wb.Lists(), ShouldEqual, 1)
		})

		Convey("When a failure is injected", func() {
			boom := errors.New("quota exceeded")
			wb.Fail("newbie", "學生住址座標[不輸出]", boom)

			_, err := wb.ReadTable(ctx, "newbie", "學生住址座標[不輸出]")
			So(err, ShouldEqual, boom)
			_, err = wb.ReadTable(ctx, "newbie", "新生名單彙總表[不輸出]")
			So(err, ShouldBeNil)

			Convey("Then healing restores reads", func() {
				wb.Heal()
				_, err := wb.ReadTable(ctx, "newbie", "學生住址座標[不輸出]")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the source is unknown or blank", func() {
			_, err := wb.ReadTable(ctx, "graduate", "x")
			So(errors.Is(err, source.ErrNotFound), ShouldBeTrue)
			_, err = wb.ListSections(ctx, "")
			So(errors.Is(err, source.ErrEmptySourceID), ShouldBeTrue)
		})
	})

	Convey("An empty document yields an empty workbook", t, func() {
		wb, err := memory.LoadYAML(strings.NewReader(""))
		So(err, ShouldBeNil)
		_, err = wb.ListSections(context.Background(), "newbie")
		So(errors.Is(err, source.ErrNotFound), ShouldBeTrue)
	})
}
