package service_test

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/okian/schoolboard/internal/adapters/repository"
	"github.com/okian/schoolboard/internal/adapters/source/memory"
	service "github.com/okian/schoolboard/internal/app"
	"github.com/okian/schoolboard/internal/config"
	"github.com/okian/schoolboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var allTables = config.Tables{
	Newbie:         "nb",
	Graduate:       "gr",
	GSAT:           "gsat",
	ST:             "st",
	CurrentStudent: "cur",
}

func school() *memory.Workbook {
	wb := memory.New()
	wb.Put("nb", repository.SectionNewbie, [][]any{
		{"身分證統一編號", "姓名", "性別", "入學身分", "入學年分"},
		{"A1", "王小明", "男", "一般生", float64(113)},
		{"B2", "李小華", "女", "", float64(113)},
		{"C3", "陳大文", "男", "原住民", float64(112)},
		{"D4", "林", "女", "一般生", "未定"},
	})
	wb.Put("nb", repository.SectionCoordinates, [][]any{
		{"身分證字號", "地址", "緯度", "經度"},
		{"A1", "台北市", 25.03, 121.56},
	})
	wb.Put("gr", repository.SectionGraduates, [][]any{
		{"身分證字號", "姓名", "性別", "錄取學校", "榜單年分"},
		{"A1", "王小明", "男", "台大", float64(113)},
		{"E5", "張", "女", "清大", float64(112)},
	})
	wb.Put("gsat", repository.SectionGSATScores, [][]any{
		{"報名序號", "年度", "國文"},
		{"900", float64(113), float64(13)},
		{"901", float64(112), float64(11)},
	})
	wb.Put("gsat", repository.SectionGSATBands, [][]any{
		{"年分", "科目", "五標", "分數"},
		{float64(113), "國文級分", "頂標", float64(13)},
		{float64(113), "國文級分", "均標", float64(10)},
	})
	wb.Put("gsat", repository.SectionIDMapping, [][]any{
		{"報名序號", "考試年份", "身分證字號"},
		{"900", "113", "A1"},
		{"901", "112", "C3"},
	})
	wb.Put("st", repository.SectionSTScores, [][]any{
		{"身分證字號", "年度", "數甲"},
		{"A1", float64(113), float64(45)},
	})
	wb.Put("st", repository.SectionSTBands, [][]any{
		{"年分", "科目", "五標", "分數"},
		{float64(113), "數甲", "前標", float64(40)},
	})
	wb.Put("cur", "學生名單總表[113-2]", [][]any{
		{"學號", "身分證字號", "年班"},
		{"700001", "C3", "201"},
	})
	wb.Put("cur", "學生名單總表 [114-1]", [][]any{
		{"學號", "身分證字號", "年班"},
		{"710001", "A1", "101"},
		{"710002", "B2", "102"},
		{"700001", "C3", "301"},
		{"799999", "Z9", "901"},
	})
	return wb
}

func newService(wb *memory.Workbook, tables config.Tables, clk *fakeClock, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogger(logger.NewNop()),
		service.WithClock(clk.Now),
		service.WithCacheTTL(30 * time.Minute),
	}
	return service.New(wb, tables, append(base, opts...)...)
}
