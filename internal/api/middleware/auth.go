package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"paint-mixer/internal/api/respond"
	"paint-mixer/internal/pkg/common"
)

// UserIDKey gin context 中保存使用者 ID 的鍵
const UserIDKey = "user_id"

// Claims 存取權杖內容；palette 擁有者取自 userId
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

var errAuthNotConfigured = errors.New("authentication not configured")

// Auth 驗證 Bearer JWT 並把 userId 放進 context
//
// 缺少或格式錯誤的 header 回 401，簽章或期限無效回 403。
func Auth(secret string) gin.HandlerFunc {
	if secret == "" {
		common.LogWarn("JWT_SECRET not set; authenticated routes will reject every request")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		if secret == "" {
			respond.Error(c, common.ErrUnauthorized, errAuthNotConfigured.Error(), nil)
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			respond.Error(c, common.ErrUnauthorized, "Token required", nil)
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" {
			respond.Error(c, common.ErrUnauthorized, "Invalid token", nil)
			return
		}

		claims := &Claims{}
		parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid || claims.UserID == "" {
			common.LogDebug("Token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			respond.Error(c, common.ErrForbidden, "Token expired or invalid", nil)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID 取得已驗證的使用者 ID
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// SignToken 簽發 HS256 權杖，供 CLI 與測試使用
func SignToken(secret, userID string, claims jwt.RegisteredClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           userID,
		RegisteredClaims: claims,
	}).SignedString([]byte(secret))
}
