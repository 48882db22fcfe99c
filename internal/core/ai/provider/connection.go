package provider

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"paint-mixer/internal/pkg/common"
)

// NewConnectionStatus 依健康檢查結果組出狀態；失敗時記錄但不回傳錯誤
func NewConnectionStatus(info Info, keyPreview string, elapsed time.Duration, text string, err error) ConnectionStatus {
	status := ConnectionStatus{
		Provider:      info.Name,
		Model:         info.Model,
		BaseURL:       info.BaseURL,
		APIKeyPreview: keyPreview,
		Timestamp:     common.Timestamp(now()),
	}

	if err != nil {
		common.LogWarn("AI 健康檢查失敗",
			zap.String("provider", info.Name),
			zap.String("model", info.Model),
			zap.Error(err),
		)
		status.Status = "error"
		status.Error = err.Error()
		return status
	}

	status.Connected = true
	status.Status = "connected"
	status.ResponseTime = fmt.Sprintf("%dms", elapsed.Milliseconds())
	status.TestResponse = strings.TrimSpace(text)
	return status
}
