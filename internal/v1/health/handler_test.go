package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func doProbe(t *testing.T, h *Handler, register func(*gin.Engine, *Handler), path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	register(engine, h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	engine.ServeHTTP(w, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return w, decoded
}

func TestLiveness(t *testing.T) {
	w, resp := doProbe(t, NewHandler(nil), func(e *gin.Engine, h *Handler) {
		e.GET("/health/live", h.Liveness)
	}, "/health/live")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", resp["status"])
	assert.NotEmpty(t, resp["timestamp"])
}

func TestReadiness_NoDatabaseIsHealthy(t *testing.T) {
	w, resp := doProbe(t, NewHandler(nil), func(e *gin.Engine, h *Handler) {
		e.GET("/health/ready", h.Readiness)
	}, "/health/ready")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", resp["status"])
	checks := resp["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
}

func TestReadiness_DatabaseUp(t *testing.T) {
	w, resp := doProbe(t, NewHandler(&fakePinger{}), func(e *gin.Engine, h *Handler) {
		e.GET("/health/ready", h.Readiness)
	}, "/health/ready")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", resp["status"])
}

func TestReadiness_DatabaseDown(t *testing.T) {
	w, resp := doProbe(t, NewHandler(&fakePinger{err: errors.New("connection refused")}), func(e *gin.Engine, h *Handler) {
		e.GET("/health/ready", h.Readiness)
	}, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unavailable", resp["status"])
	checks := resp["checks"].(map[string]any)
	assert.Equal(t, "unhealthy", checks["database"])
}
