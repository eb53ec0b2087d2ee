package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPromApp(t *testing.T, skip ...string) (*fiber.App, *PrometheusMiddleware, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	pm, err := NewPrometheusMiddleware(reg, skip...)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(pm.Handler())
	return app, pm, reg
}

func TestPrometheusMiddleware_CountsByRoute(t *testing.T) {
	app, pm, _ := newPromApp(t)
	app.Get("/api/mri/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Delete("/api/mri/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Post("/api/analysis/tumour-detection", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad request")
	})

	tests := []struct {
		method, target, route, status string
	}{
		{"GET", "/api/mri/123", "/api/mri/:id", "200"},
		{"DELETE", "/api/mri/456", "/api/mri/:id", "204"},
		{"POST", "/api/analysis/tumour-detection", "/api/analysis/tumour-detection", "400"},
	}
	for _, tt := range tests {
		_, err := app.Test(httptest.NewRequest(tt.method, tt.target, nil))
		require.NoError(t, err)
		assert.Equal(t, 1.0, testutil.ToFloat64(pm.requests.WithLabelValues(tt.method, tt.route, tt.status)), tt.target)
	}

	assert.Equal(t, 3, testutil.CollectAndCount(pm.latency))
	assert.Equal(t, 0.0, testutil.ToFloat64(pm.inFlight))
}

func TestPrometheusMiddleware_SkipsPaths(t *testing.T) {
	app, _, reg := newPromApp(t, "/healthz")
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Get("/metrics", ok)
	app.Get("/healthz", ok)

	for _, p := range []string{"/metrics", "/healthz"} {
		_, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
	}

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "tumourscan_http_requests_total" {
			assert.Empty(t, mf.GetMetric())
		}
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "3xx", statusClass(304))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(504))
}

func TestPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMiddleware(reg)
	require.NoError(t, err)

	_, err = NewPrometheusMiddleware(reg)
	assert.Error(t, err)
}
