package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paint-mixer/internal/core/ai/queue"
	"paint-mixer/internal/pkg/common"
)

// readyTimeout 就緒檢查中每個依賴的時限
const readyTimeout = 2 * time.Second

// Pinger 可以檢查連線的依賴（palette 儲存）
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueReporter 提供 AI 呼叫隊列狀態
type QueueReporter interface {
	Status() queue.Status
}

// Response 健康檢查響應
type Response struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Version   string         `json:"version"`
	Store     string         `json:"store"`
	Runtime   map[string]any `json:"runtime"`
	Queue     *queue.Status  `json:"queue,omitempty"`
}

// Handler 服務本身的健康檢查（不呼叫 AI provider）
type Handler struct {
	version string
	driver  string
	store   Pinger
	queue   QueueReporter
}

// NewHandler 創建健康檢查 handler；queue 可為 nil
func NewHandler(version, driver string, store Pinger, q QueueReporter) *Handler {
	return &Handler{version: version, driver: driver, store: store, queue: q}
}

// Register 註冊 /health、/ready、/live
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.HealthCheck)
	r.GET("/ready", h.ReadinessCheck)
	r.GET("/live", h.LivenessCheck)
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := Response{
		Status:    "ok",
		Timestamp: common.Timestamp(time.Now()),
		Version:   h.version,
		Store:     h.driver,
		Runtime: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		status := h.queue.Status()
		resp.Queue = &status
	}

	c.JSON(http.StatusOK, resp)
}

// ReadinessCheck 就緒檢查：palette 儲存必須可用
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		common.LogWarn("Readiness check failed",
			zap.String("store", h.driver),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"store":  h.driver,
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"store":  h.driver,
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
