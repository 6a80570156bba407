package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/schoolboard/internal/adapters/http/api"
	"github.com/okian/schoolboard/internal/adapters/repository"
	"github.com/okian/schoolboard/internal/adapters/source/memory"
	service "github.com/okian/schoolboard/internal/app"
	"github.com/okian/schoolboard/internal/config"
	"github.com/okian/schoolboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	m.Run()
}

func workbook() *memory.Workbook {
	wb := memory.New()
	wb.Put("nb", repository.SectionNewbie, [][]any{
		{"身分證統一編號", "姓名", "性別", "入學年分"},
		{"A1", "王小明", "男", float64(113)},
		{"B2", "李小華", "女", float64(112)},
	})
	wb.Put("gr", repository.SectionGraduates, [][]any{
		{"身分證字號", "錄取學校", "榜單年分"},
		{"A1", "台大", float64(113)},
	})
	wb.Put("gsat", repository.SectionIDMapping, [][]any{
		{"報名序號", "考試年份", "身分證字號"},
		{"900", "113", "A1"},
	})
	return wb
}

func newMux(opts ...service.Option) *http.ServeMux {
	tables := config.Tables{Newbie: "nb", Graduate: "gr", GSAT: "gsat"}
	svc := service.New(workbook(), tables, append([]service.Option{service.WithLogger(logger.NewNop())}, opts...)...)
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.NewDecoder(w.Body).Decode(&out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server without a passkey", t, func() {
		mux := newMux()

		Convey("When the health endpoint is queried", func() {
			w := do(mux, "GET", "/healthz", "")

			Convey("Then it reports ok", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["status"], ShouldEqual, "ok")
			})
		})

		Convey("When metrics are scraped", func() {
			do(mux, "GET", "/api/years", "")
			w := do(mux, "GET", "/metrics", "")

			Convey("Then the request counters are exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "years")
			})
		})

		Convey("When stats are requested", func() {
			w := do(mux, "GET", "/stats", "")

			Convey("Then the service statistics come back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				stats := decode(w)
				So(stats["started"], ShouldEqual, false)
				So(stats["authEnabled"], ShouldEqual, false)
			})
		})
	})
}

func TestDashboardHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux()

		Convey("When the newbie package is requested without a period", func() {
			w := do(mux, "GET", "/api/packages?type=newbie", "")

			Convey("Then the latest admission year is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				students := body["students"].(map[string]any)
				So(students["count"], ShouldEqual, float64(1))
				meta := body["metadata"].(map[string]any)
				So(meta["cached"], ShouldEqual, false)
			})

			Convey("Then a repeat is served from the cache", func() {
				again := do(mux, "GET", "/api/packages?type=newbie&period=latest", "")
				So(again.Code, ShouldEqual, http.StatusOK)
				meta := decode(again)["metadata"].(map[string]any)
				So(meta["cached"], ShouldEqual, true)
				So(meta["queries"], ShouldEqual, float64(2))
			})
		})

		Convey("When the dashboard type is unknown", func() {
			w := do(mux, "GET", "/api/packages?type=bogus", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the type is missing", func() {
			w := do(mux, "GET", "/api/packages", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the period token is malformed", func() {
			w := do(mux, "GET", "/api/packages?type=graduate&period=abc", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the wrong method is used", func() {
			w := do(mux, "POST", "/api/packages?type=newbie", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When available years are requested", func() {
			w := do(mux, "GET", "/api/years", "")

			Convey("Then all is the union of every domain", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				all := decode(w)["all"].([]any)
				So(all, ShouldResemble, []any{float64(113), float64(112)})
			})
		})
	})
}

func TestJoinHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux()

		Convey("When students are joined to graduates", func() {
			w := do(mux, "POST", "/api/join", `{"source":"students","selected":[{"身分證統一編號":"A1"}],"targets":["graduates"]}`)

			Convey("Then the matching graduate is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["success"], ShouldEqual, true)
				matches := body["result"].(map[string]any)["matches"].(map[string]any)
				So(matches["graduates"], ShouldHaveLength, 1)
			})
		})

		Convey("When nothing is selected", func() {
			w := do(mux, "POST", "/api/join", `{"source":"students","selected":[]}`)

			Convey("Then it fails with success false", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decode(w)
				So(body["success"], ShouldEqual, false)
				So(body["error"], ShouldNotBeEmpty)
			})
		})

		Convey("When the source domain is unknown", func() {
			w := do(mux, "POST", "/api/join", `{"source":"staff","selected":[{"a":"b"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["success"], ShouldEqual, false)
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, "POST", "/api/join", `{`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAdminHandler(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux()

		Convey("When the ID mapping is searched", func() {
			w := do(mux, "GET", "/api/id-mapping?q=a1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["count"], ShouldEqual, float64(1))
		})

		Convey("When the cache is cleared after a request", func() {
			do(mux, "GET", "/api/packages?type=newbie", "")
			list := do(mux, "GET", "/api/cache", "")
			So(list.Code, ShouldEqual, http.StatusOK)
			So(list.Body.String(), ShouldContainSubstring, "package:latest")

			w := do(mux, "DELETE", "/api/cache", "")

			Convey("Then every entry is removed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				removed := decode(w)["removed"].(float64)
				So(removed, ShouldBeGreaterThan, 0)
				So(do(mux, "GET", "/api/cache", "").Body.String(), ShouldNotContainSubstring, "package:latest")
			})
		})

		Convey("When connections are tested", func() {
			w := do(mux, "GET", "/api/connections", "")

			Convey("Then unconfigured tables are skipped", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res []service.ConnectionResult
				So(json.NewDecoder(w.Body).Decode(&res), ShouldBeNil)
				So(res, ShouldHaveLength, 5)
				statuses := map[string]string{}
				for _, r := range res {
					statuses[r.Key] = r.Status
				}
				So(statuses[config.KeyNewbie], ShouldEqual, service.ConnectionOK)
				So(statuses[config.KeyST], ShouldEqual, service.ConnectionSkipped)
			})
		})
	})
}

func TestSessions(t *testing.T) {
	Convey("Given a server protected by a passkey", t, func() {
		mux := newMux(service.WithPassKey("open-sesame", 0))

		Convey("When the API is called without a session", func() {
			w := do(mux, "GET", "/api/years", "")
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When health is checked without a session", func() {
			So(do(mux, "GET", "/healthz", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When a wrong passkey is offered", func() {
			w := do(mux, "POST", "/api/session", `{"passKey":"nope"}`)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When the right passkey is offered", func() {
			w := do(mux, "POST", "/api/session", `{"passKey":"open-sesame"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			cookies := w.Result().Cookies()
			So(cookies, ShouldHaveLength, 1)
			So(cookies[0].Name, ShouldEqual, api.SessionCookie)

			Convey("Then the cookie opens the API", func() {
				So(do(mux, "GET", "/api/years", "", cookies[0]).Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then the session header works too", func() {
				req := httptest.NewRequest("GET", "/api/years", http.NoBody)
				req.Header.Set(api.SessionHeader, cookies[0].Value)
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, req)
				So(rec.Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then logging out closes it again", func() {
				So(do(mux, "DELETE", "/api/session", "", cookies[0]).Code, ShouldEqual, http.StatusOK)
				So(do(mux, "GET", "/api/years", "", cookies[0]).Code, ShouldEqual, http.StatusUnauthorized)
			})
		})
	})
}
