package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithLatencyBuckets([]float64{10, 100, 1000}),
				WithRefreshInterval(3*time.Second),
				WithMetricsEnabled(false),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.cacheHits.WithLabelValues("package").Inc()
			manager.sourceReadLatency.WithLabelValues("students").Observe(50)

			Convey("Then names carry the namespace and the fixed labels", func() {
				So(manager.RefreshInterval(), ShouldEqual, 3*time.Second)
				So(manager.Enabled(), ShouldBeFalse)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					switch f.GetName() {
					case "test_namespace_dashboard_cache_hits_total":
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					case "test_namespace_dashboard_source_read_latency_milliseconds":
						So(f.GetMetric()[0].GetHistogram().GetBucket(), ShouldHaveLength, 3)
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When latency buckets are not increasing", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithLatencyBuckets([]float64{100, 10}), WithPrometheusRegistry(registry))

			Convey("Then the defaults are kept", func() {
				So(manager.latencyBuckets, ShouldResemble, defaultLatencyBuckets)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When cache hits and misses are recorded", func() {
			beforeHit := testutil.ToFloat64(globalManager.cacheHits.WithLabelValues("years"))
			beforeMiss := testutil.ToFloat64(globalManager.cacheMisses.WithLabelValues("years"))
			RecordCacheHit("years")
			RecordCacheMiss("years")
			RecordCacheMiss("years")

			Convey("Then the counters advance by kind", func() {
				So(testutil.ToFloat64(globalManager.cacheHits.WithLabelValues("years")), ShouldEqual, beforeHit+1)
				So(testutil.ToFloat64(globalManager.cacheMisses.WithLabelValues("years")), ShouldEqual, beforeMiss+2)
			})
		})

		Convey("When a package assembly is recorded", func() {
			before := testutil.ToFloat64(globalManager.packageQueries.WithLabelValues("newbie"))
			RecordPackageAssembly("newbie", 12, 40, 2)

			Convey("Then records and queries are exported", func() {
				So(testutil.ToFloat64(globalManager.packageRecords.WithLabelValues("newbie")), ShouldEqual, 40)
				So(testutil.ToFloat64(globalManager.packageQueries.WithLabelValues("newbie")), ShouldEqual, before+2)
			})
		})

		Convey("When source failures are recorded", func() {
			RecordSourceFailure("read", "missing_id")

			Convey("Then the registry exposes them", func() {
				n, err := testutil.GatherAndCount(GetRegistry(), "schoolboard_dashboard_source_read_failures_total")
				So(err, ShouldBeNil)
				So(n, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When session gauges are updated", func() {
			UpdateSessionsActive(3)

			Convey("Then the gauge holds the value", func() {
				So(testutil.ToFloat64(globalManager.sessionsActive), ShouldEqual, 3)
				n, err := testutil.GatherAndCount(GetRegistry(), "schoolboard_dashboard_sessions_active")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestInit(t *testing.T) {
	Convey("Given a configured global manager", t, func() {
		before := GetRegistry()
		Init(WithRefreshInterval(2*time.Second), WithConstLabels(map[string]string{"school": "test"}))
		RecordCacheMiss("dataset")

		Convey("Then recorders and the registry follow the new manager", func() {
			So(RefreshInterval(), ShouldEqual, 2*time.Second)
			So(GetRegistry(), ShouldNotPointTo, before)
			n, err := testutil.GatherAndCount(GetRegistry(), "schoolboard_dashboard_cache_misses_total")
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}
