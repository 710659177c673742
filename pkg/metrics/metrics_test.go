package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	// Each instance owns its registry, so constructing twice must not panic
	a := New()
	b := New()

	a.RecordSend("sent", 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.SendsTotal.WithLabelValues("sent")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SendsTotal.WithLabelValues("sent")))
}

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordLeadMutation("create", 3)
	m.RecordLeadMutation("create", 0)
	m.RecordTrackingEvent("open")
	m.RecordTrackingEvent("open")
	m.RecordStatsRebuild()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.LeadMutations.WithLabelValues("create")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrackingEvents.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatsRebuilds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses))
}

func TestRecorders_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSend("failed", time.Second)
		m.RecordLeadMutation("delete", 1)
		m.RecordTrackingEvent("click")
		m.RecordStatsRebuild()
		m.RecordCacheHit()
		m.RecordCacheMiss()
	})
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/track/open/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/track/open/17", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/track/open/:id", "200")))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "leadflow_http_requests_total")
}
