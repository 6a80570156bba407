package source_test

import (
	"context"
	"sync"
	"testing"

	"github.com/okian/schoolboard/internal/adapters/source"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTally(t *testing.T) {
	Convey("Given a context with a tally", t, func() {
		ctx, tally := source.WithTally(context.Background())

		Convey("When reads are counted from several goroutines", func() {
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					source.Count(ctx)
				}()
			}
			wg.Wait()

			Convey("Then every read is counted", func() {
				So(tally.Queries(), ShouldEqual, 10)
			})
		})

		Convey("When counting on a context without a tally", func() {
			source.Count(context.Background())

			Convey("Then nothing happens", func() {
				So(tally.Queries(), ShouldEqual, 0)
			})
		})
	})
}
