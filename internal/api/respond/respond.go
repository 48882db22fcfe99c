package respond

import (
	"github.com/gin-gonic/gin"

	"paint-mixer/internal/pkg/common"
)

// OK 成功回應 {success: true, data}
func OK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// Error 錯誤回應 {success: false, error, code}；message 為空時使用預設訊息
func Error(c *gin.Context, e *common.CustomError, message string, extra gin.H) {
	if message == "" {
		message = e.Message
	}
	body := gin.H{
		"success": false,
		"error":   message,
		"code":    e.Code,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(e.Status, body)
}
