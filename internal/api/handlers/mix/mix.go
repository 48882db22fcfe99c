package mix

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paint-mixer/internal/api/middleware"
	"paint-mixer/internal/api/respond"
	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/core/ai/queue"
	mixcore "paint-mixer/internal/core/mix"
	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/pkg/common"
)

// Service 混色 handler 需要的服務
type Service interface {
	GenerateMixPreview(ctx context.Context, ownerID string, req mixcore.Request) (*mixcore.Preview, error)
	GenerateMix(ctx context.Context, ownerID string, req mixcore.Request) (*mixcore.Outcome, error)
	PromptPreview(ctx context.Context, ownerID string, req mixcore.Request) (*mixcore.PromptPreview, error)
	Raw(ctx context.Context, ownerID string, req mixcore.Request) (*mixcore.RawResult, error)
	Health(ctx context.Context) (provider.ConnectionStatus, error)
	Reset()
}

// Handler 混色 API
type Handler struct {
	svc        Service
	loadConfig func() (config.AIConfig, error)
	now        func() time.Time
}

// NewHandler 創建混色 handler
func NewHandler(svc Service) *Handler {
	return &Handler{
		svc:        svc,
		loadConfig: config.LoadAIConfig,
		now:        time.Now,
	}
}

// Register 註冊 /mixes 路由
func (h *Handler) Register(group *gin.RouterGroup) {
	group.POST("/generate", h.Generate)
	group.GET("/health", h.Health)
	group.POST("/reset", h.Reset)
	group.GET("/preview", h.Preview)
	group.POST("/raw", h.Raw)
}

// generateRequest 生成請求；save 可為布林或字串 "true"
type generateRequest struct {
	TargetBrand     string `json:"targetBrand" binding:"required"`
	TargetName      string `json:"targetName" binding:"required"`
	TargetColor     string `json:"targetColor"`
	TargetReference string `json:"targetReference"`
	Save            any    `json:"save"`
}

func (r generateRequest) shouldSave() bool {
	return r.Save == true || r.Save == "true"
}

func (r generateRequest) toRequest() mixcore.Request {
	return mixcore.Request{
		TargetBrand:     r.TargetBrand,
		TargetName:      r.TargetName,
		TargetColor:     r.TargetColor,
		TargetReference: r.TargetReference,
	}
}

func bindGenerate(c *gin.Context) (generateRequest, bool) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("Mix request validation failed",
			zap.String("user_id", middleware.UserID(c)),
			zap.Error(err),
		)
		respond.Error(c, common.ErrInvalidRequest, "Invalid data", gin.H{"details": err.Error()})
		return req, false
	}
	if req.TargetColor != "" && !paint.ValidColor(req.TargetColor) {
		respond.Error(c, common.ErrInvalidRequest, "Invalid data", gin.H{"details": "targetColor must be a hex color (#RRGGBB)"})
		return req, false
	}
	return req, true
}

// Generate POST /generate：預覽，或 save 為真時生成並儲存
func (h *Handler) Generate(c *gin.Context) {
	req, ok := bindGenerate(c)
	if !ok {
		return
	}
	userID := middleware.UserID(c)
	ctx := c.Request.Context()

	common.LogInfo("Generating paint mix with AI",
		zap.String("user_id", userID),
		zap.String("target_brand", req.TargetBrand),
		zap.String("target_name", req.TargetName),
		zap.Bool("save", req.shouldSave()),
	)

	if req.shouldSave() {
		outcome, err := h.svc.GenerateMix(ctx, userID, req.toRequest())
		if err != nil {
			h.fail(c, err)
			return
		}
		if outcome.Mix != nil {
			common.LogInfo("Mix generated and saved",
				zap.String("user_id", userID),
				zap.String("mix_id", outcome.Mix.ID),
			)
		}
		respond.OK(c, http.StatusOK, outcome.Body())
		return
	}

	preview, err := h.svc.GenerateMixPreview(ctx, userID, req.toRequest())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, http.StatusOK, preview)
}

// Health GET /health：測試 AI provider 連線
func (h *Handler) Health(c *gin.Context) {
	status, err := h.svc.Health(c.Request.Context())
	if err != nil {
		h.healthFailure(c, err)
		return
	}

	code := http.StatusOK
	if !status.Connected {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"success": status.Connected,
		"data":    status,
	})
}

func (h *Handler) healthFailure(c *gin.Context, err error) {
	cfg, cfgErr := h.loadConfig()
	if cfgErr != nil {
		common.LogWarn("Failed to reload AI config for health report", zap.Error(cfgErr))
	}
	name := cfg.Provider
	if name == "" {
		name = config.ProviderGemini
	}

	data := gin.H{
		"provider":  name,
		"connected": false,
		"timestamp": common.Timestamp(h.now()),
	}
	message := err.Error()
	if common.IsConfigurationError(err) {
		data["status"] = "not_configured"
		data["envApiKeyPreview"] = common.MaskSecret(cfg.APIKey, "not-set")
		message = "AI service not configured: " + message
		respond.Error(c, common.ErrAINotConfigured, message, gin.H{"data": data})
		return
	}

	data["status"] = "error"
	respond.Error(c, common.ErrServiceUnavailable, message, gin.H{"data": data})
}

// Reset POST /reset：清除 provider 快取
func (h *Handler) Reset(c *gin.Context) {
	h.svc.Reset()
	common.LogInfo("AI provider cache cleared", zap.String("user_id", middleware.UserID(c)))
	respond.OK(c, http.StatusOK, gin.H{
		"message":   "AI provider cache cleared",
		"timestamp": common.Timestamp(h.now()),
	})
}

// Preview GET /preview：只產生 prompt，不呼叫 AI
func (h *Handler) Preview(c *gin.Context) {
	req := mixcore.Request{
		TargetBrand: c.Query("targetBrand"),
		TargetName:  c.Query("targetName"),
		TargetColor: c.Query("targetColor"),
	}
	if req.TargetBrand == "" || req.TargetName == "" {
		respond.Error(c, common.ErrInvalidRequest, "targetBrand and targetName are required", nil)
		return
	}

	preview, err := h.svc.PromptPreview(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, http.StatusOK, preview)
}

// Raw POST /raw：回傳 AI 原始文字，除錯用
func (h *Handler) Raw(c *gin.Context) {
	req, ok := bindGenerate(c)
	if !ok {
		return
	}

	result, err := h.svc.Raw(c.Request.Context(), middleware.UserID(c), req.toRequest())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, http.StatusOK, result)
}

// fail 設定錯誤與隊列已滿回 503，逾時回 504，其餘回 500
func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case common.IsConfigurationError(err):
		respond.Error(c, common.ErrAINotConfigured, "AI service not configured", gin.H{"details": err.Error()})
	case errors.Is(err, queue.ErrQueueFull):
		respond.Error(c, common.ErrServiceUnavailable, "AI request queue is full", nil)
	case errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, common.ErrRequestTimeout, "Request timeout", nil)
	default:
		respond.Error(c, common.ErrMixFailed, err.Error(), nil)
	}
}
