package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowme-cloud/flowme-backend/internal/api/http/middleware"
	"github.com/flowme-cloud/flowme-backend/internal/metrics"
	"github.com/flowme-cloud/flowme-backend/internal/settings"
)

func TestBuildRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	r := BuildRouter(RouterDeps{
		ServiceName: "flowme-backend",
		Version:     "test",
		Redis:       rdb,
		Metrics:     reg,
		Settings:    settings.NewService(settings.NewRedisStore(rdb)),
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "flowme_ai_calls_total"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Routes for services that were not supplied are absent.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/ai/text", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := BuildRouter(RouterDeps{ServiceName: "s", Version: "v", AllowedOrigins: []string{"https://wiki.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://wiki.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://wiki.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildRouter_SettingsWriteNeedsAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := BuildRouter(RouterDeps{
		ServiceName:        "flowme-backend",
		Version:            "test",
		Redis:              rdb,
		Settings:           settings.NewService(settings.NewRedisStore(rdb)),
		SettingsAdminToken: "admin-tok",
	})

	put := func(adminToken string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(`{"enabled":true,"secretValue":"sk-1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer wiki-user")
		if adminToken != "" {
			req.Header.Set(middleware.AdminTokenHeader, adminToken)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, put("").Code)
	assert.Equal(t, http.StatusUnauthorized, put("wrong").Code)
	assert.False(t, mr.Exists(settings.Key))

	assert.Equal(t, http.StatusOK, put("admin-tok").Code)

	// Reads stay open to the macro editor.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
