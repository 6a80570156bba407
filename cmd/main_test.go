package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/okian/schoolboard/internal/adapters/source/memory"
	"github.com/okian/schoolboard/internal/adapters/source/sqlite"
	app "github.com/okian/schoolboard/internal/app"
	"github.com/okian/schoolboard/internal/config"
	"github.com/okian/schoolboard/pkg/logger"
	"github.com/okian/schoolboard/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

const fixture = `
sources:
  nb:
    - name: 新生名單彙總表[不輸出]
      rows:
        - [身分證統一編號, 姓名, 入學年分]
        - [A123456789, 王小明, 113]
        - [B223456789, 李小華, 112]
`

func TestOpenSource(t *testing.T) {
	convey.Convey("Given the configured source kind", t, func() {
		ctx := context.Background()
		cfg := config.New()
		l := logger.NewNop()

		convey.Convey("When it is a YAML fixture", func() {
			path := filepath.Join(t.TempDir(), "school.yaml")
			convey.So(os.WriteFile(path, []byte(fixture), 0o600), convey.ShouldBeNil)
			cfg.Source.Kind = config.SourceYAML
			cfg.Source.FixtureFile = path

			src, err := openSource(ctx, cfg, l)

			convey.Convey("Then the fixture workbook is served", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(src, convey.ShouldHaveSameTypeAs, &memory.Workbook{})
				names, err := src.ListSections(ctx, "nb")
				convey.So(err, convey.ShouldBeNil)
				convey.So(names, convey.ShouldHaveLength, 1)
			})
		})

		convey.Convey("When the fixture file is missing", func() {
			cfg.Source.Kind = config.SourceYAML
			cfg.Source.FixtureFile = filepath.Join(t.TempDir(), "missing.yaml")
			_, err := openSource(ctx, cfg, l)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When it is a SQLite directory", func() {
			cfg.Source.Kind = config.SourceSQLite
			cfg.Source.SQLiteDir = t.TempDir()
			src, err := openSource(ctx, cfg, l)
			convey.So(err, convey.ShouldBeNil)
			convey.So(src, convey.ShouldHaveSameTypeAs, &sqlite.Source{})
		})

		convey.Convey("When the sheets credentials file does not exist", func() {
			cfg.Source.Kind = config.SourceSheets
			cfg.Source.CredentialsFile = filepath.Join(t.TempDir(), "nope.json")
			_, err := openSource(ctx, cfg, l)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the kind is unknown", func() {
			cfg.Source.Kind = "excel"
			_, err := openSource(ctx, cfg, l)
			convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the server mux over a fixture workbook", t, func() {
		ctx := context.Background()
		wb, err := memory.LoadYAML(strings.NewReader(fixture))
		convey.So(err, convey.ShouldBeNil)
		svc := app.New(wb, config.Tables{Newbie: "nb"}, app.WithLogger(logger.NewNop()))
		mux := newMux(ctx, svc)

		for _, path := range []string{"/healthz", "/metrics", "/stats", "/api-docs", "/openapi.yaml", "/api/years"} {
			convey.Convey("Then "+path+" is served", func() {
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, httptest.NewRequest("GET", path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		}

		convey.Convey("Then the newbie package carries the newest year", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/packages?type=newbie", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "A123456789")
			convey.So(w.Body.String(), convey.ShouldNotContainSubstring, "B223456789")
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	convey.Convey("Updating system metrics does not panic", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})

	convey.Convey("Given a metrics section in the config", t, func() {
		cfg := config.New()
		cfg.Metrics.RefreshInterval = 5 * time.Millisecond
		cfg.Metrics.Labels = map[string]string{"school": "north"}
		metrics.Init(metricsOptions(cfg)...)

		convey.Convey("When the system updater runs on the configured interval", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx, metrics.RefreshInterval())
				close(done)
			}()
			time.Sleep(50 * time.Millisecond)
			cancel()
			<-done

			convey.Convey("Then the gauges are sampled into the configured registry", func() {
				convey.So(metrics.RefreshInterval(), convey.ShouldEqual, 5*time.Millisecond)
				n, err := testutil.GatherAndCount(metrics.GetRegistry(), "schoolboard_dashboard_system_goroutine_count")
				convey.So(err, convey.ShouldBeNil)
				convey.So(n, convey.ShouldEqual, 1)
				families, err := metrics.GetRegistry().Gather()
				convey.So(err, convey.ShouldBeNil)
				labelled := false
				for _, f := range families {
					if f.GetName() != "schoolboard_dashboard_system_goroutine_count" {
						continue
					}
					for _, l := range f.GetMetric()[0].GetLabel() {
						if l.GetName() == "school" && l.GetValue() == "north" {
							labelled = true
						}
					}
					convey.So(f.GetMetric()[0].GetGauge().GetValue(), convey.ShouldBeGreaterThan, 0)
				}
				convey.So(labelled, convey.ShouldBeTrue)
			})
		})
	})
}
