package common

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// 預定義錯誤代碼
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"   // 400
	ErrCodeUnauthorized    = "UNAUTHORIZED"      // 401
	ErrCodeForbidden       = "FORBIDDEN"         // 403
	ErrCodeBodyTooLarge    = "BODY_TOO_LARGE"    // 413
	ErrCodeTooManyRequests = "TOO_MANY_REQUESTS" // 429

	ErrCodeInternalError      = "INTERNAL_ERROR"        // 500
	ErrCodeMixFailed          = "MIX_GENERATION_FAILED" // 500
	ErrCodeAINotConfigured    = "AI_NOT_CONFIGURED"     // 503
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"   // 503
	ErrCodeRequestTimeout     = "REQUEST_TIMEOUT"       // 504
)

// 預定義錯誤
var (
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "未授權的訪問", http.StatusUnauthorized, nil)
	ErrForbidden          = NewError(ErrCodeForbidden, "禁止訪問", http.StatusForbidden, nil)
	ErrBodyTooLarge       = NewError(ErrCodeBodyTooLarge, "請求體過大", http.StatusRequestEntityTooLarge, nil)
	ErrRequestTimeout     = NewError(ErrCodeRequestTimeout, "請求逾時", http.StatusGatewayTimeout, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)
	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrMixFailed          = NewError(ErrCodeMixFailed, "混色生成失敗", http.StatusInternalServerError, nil)
	ErrAINotConfigured    = NewError(ErrCodeAINotConfigured, "AI 服務未設定", http.StatusServiceUnavailable, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)
)

// ConfigurationError AI 服務設定錯誤（缺少憑證、端點或未知 provider）
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError 創建設定錯誤
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// IsConfigurationError 檢查錯誤鏈中是否有設定錯誤
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// excerptLimit ParseError 保留的原始回應長度
const excerptLimit = 200

// ParseError AI 回應中找不到可解析的 JSON
type ParseError struct {
	Reason  string
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse AI response: %s. Response was: %s", e.Reason, e.Excerpt)
}

// NewParseError 創建解析錯誤，原始文字截斷至 200 字元
func NewParseError(reason, raw string) error {
	return &ParseError{Reason: reason, Excerpt: Truncate(raw, excerptLimit)}
}

// IsParseError 檢查錯誤鏈中是否有解析錯誤
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// StructureError 食譜結構驗證失敗
type StructureError struct {
	Message string
}

func (e *StructureError) Error() string {
	return e.Message
}

// NewStructureError 創建結構錯誤
func NewStructureError(message string) error {
	return &StructureError{Message: message}
}

// IsStructureError 檢查錯誤鏈中是否有結構錯誤
func IsStructureError(err error) bool {
	var target *StructureError
	return errors.As(err, &target)
}

// TransportError 後端呼叫失敗（逾時、非 2xx、連線拒絕）
type TransportError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GenerationError provider 生成失敗，保留原因
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("AI generation failed (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// MixGenerationError 混色流程統一錯誤
type MixGenerationError struct {
	Err error
}

func (e *MixGenerationError) Error() string {
	return "Mix generation failed: " + e.Err.Error()
}

func (e *MixGenerationError) Unwrap() error {
	return e.Err
}

// Truncate 截斷字串至指定長度（以 rune 計）
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
