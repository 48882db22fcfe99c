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

	"paint-mixer/internal/core/ai/queue"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(h *Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler("1.2.3", "memory", pingFunc(func(context.Context) error { return nil }), queue.NewManager(3, 10))

	w, body := serve(h, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "memory", body["store"])
	assert.Contains(t, body["runtime"], "goroutines")
	assert.Equal(t, float64(3), body["queue"].(map[string]any)["workers"])
}

func TestReadinessCheck(t *testing.T) {
	ok := NewHandler("1", "redis", pingFunc(func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	}), nil)
	w, body := serve(ok, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])

	down := NewHandler("1", "redis", pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}), nil)
	w, body = serve(down, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "connection refused", body["error"])
}

func TestLivenessCheck(t *testing.T) {
	w, body := serve(NewHandler("1", "memory", nil, nil), "/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])
}
