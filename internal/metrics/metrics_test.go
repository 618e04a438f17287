package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func counterValue(m *Manager, name string, labels map[string]string) float64 {
	families, err := m.Registry().Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestMetricsManager(t *testing.T) {
	Convey("Given a metrics manager on a private registry", t, func() {
		m := NewManager(WithNamespace("test"))

		Convey("When cache outcomes are observed", func() {
			m.CacheLookup("tier_stats", "fresh")
			m.CacheLookup("tier_stats", "fresh")
			m.CacheLookup("tier_stats", "stale")
			m.CacheCoalesced("tier_stats")

			Convey("Then they are counted per cache and outcome", func() {
				So(counterValue(m, "test_cache_lookups_total", map[string]string{"cache": "tier_stats", "outcome": "fresh"}), ShouldEqual, 2)
				So(counterValue(m, "test_cache_lookups_total", map[string]string{"cache": "tier_stats", "outcome": "stale"}), ShouldEqual, 1)
				So(counterValue(m, "test_cache_coalesced_total", map[string]string{"cache": "tier_stats"}), ShouldEqual, 1)
			})
		})

		Convey("When upstream fetches succeed and fail", func() {
			m.ObserveUpstream("opgg", time.Now(), nil)
			m.ObserveUpstream("opgg", time.Now(), errors.New("boom"))

			Convey("Then both outcomes are recorded", func() {
				So(counterValue(m, "test_upstream_fetches_total", map[string]string{"source": "opgg", "outcome": "ok"}), ShouldEqual, 1)
				So(counterValue(m, "test_upstream_fetches_total", map[string]string{"source": "opgg", "outcome": "error"}), ShouldEqual, 1)
			})
		})

		Convey("When the handler is scraped", func() {
			m.RecommendationServed()
			m.ProfileResolved("mock")
			m.ObserveHTTP("/api/recommend", "POST", "200", 15*time.Millisecond)

			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the exposition contains the service metrics", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				body := rec.Body.String()
				So(strings.Contains(body, "test_recommendations_total 1"), ShouldBeTrue)
				So(strings.Contains(body, `test_profile_resolutions_total{mode="mock"} 1`), ShouldBeTrue)
				So(strings.Contains(body, "test_http_request_duration_seconds"), ShouldBeTrue)
			})
		})
	})
}
