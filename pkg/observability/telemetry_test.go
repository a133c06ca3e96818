package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitTelemetryExportsCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	meterProvider, handler, err := InitTelemetry("clavis-auth-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Shutdown(context.Background(), meterProvider, nil) })

	counter, err := meterProvider.Meter("test").Int64Counter("auth_logins")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	router := gin.New()
	router.GET("/metrics", PrometheusHandler(handler))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "auth_logins_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), `service_name="clavis-auth-test"`)
}

func TestPrometheusHandlerWithoutRegistry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/metrics", PrometheusHandler(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "metrics_unavailable")
}

func TestInitLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := InitLogger(env)
		require.NoError(t, err, env)
		assert.Same(t, logger, zap.L())
	}
}
