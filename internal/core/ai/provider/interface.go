package provider

import (
	"context"

	"paint-mixer/internal/core/paint"
)

// Transport provider 與後端溝通的方式；raw 除錯呼叫依此分支，不做型別判斷
type Transport string

const (
	// TransportSDK 透過廠商 SDK 呼叫（雲端模型）
	TransportSDK Transport = "sdk"
	// TransportREST 透過通用 chat-completions REST 端點（本地模型）
	TransportREST Transport = "rest"
)

// Info provider 的描述資訊
type Info struct {
	Name      string    `json:"provider"`
	Model     string    `json:"model"`
	Transport Transport `json:"transport"`
	BaseURL   string    `json:"baseUrl,omitempty"`
}

// PaletteEntry 傳給 AI 的 palette 項目
type PaletteEntry struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Reference string `json:"reference,omitempty"`
	IsMix     bool   `json:"isMix"`
}

// PaletteFrom 將使用者的顏料轉為 palette 項目，保留順序
func PaletteFrom(paints []paint.Paint) []PaletteEntry {
	palette := make([]PaletteEntry, 0, len(paints))
	for _, p := range paints {
		palette = append(palette, PaletteEntry{
			ID:        p.ID,
			Brand:     p.Brand,
			Name:      p.Name,
			Color:     p.ColorString(),
			Reference: p.Reference,
			IsMix:     p.IsMix,
		})
	}
	return palette
}

// RecipeComponent AI 回傳的一個成分（尚未對應 palette）
type RecipeComponent struct {
	PaintID    string `json:"paintId"`
	Drops      int    `json:"drops"`
	Percentage int    `json:"percentage,omitempty"`
}

// Recipe 驗證後的 AI 食譜與來源紀錄
type Recipe struct {
	TargetBrand string            `json:"targetBrand"`
	TargetName  string            `json:"targetName"`
	Confidence  float64           `json:"confidence"`
	Explanation string            `json:"explanation"`
	Components  []RecipeComponent `json:"components"`
	AIMetadata  paint.AIMetadata  `json:"aiMetadata"`
}

// ConnectionStatus 健康檢查結果
type ConnectionStatus struct {
	Connected     bool   `json:"connected"`
	Status        string `json:"status"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	BaseURL       string `json:"baseUrl,omitempty"`
	ResponseTime  string `json:"responseTime,omitempty"`
	TestResponse  string `json:"testResponse,omitempty"`
	APIKeyPreview string `json:"apiKeyPreview"`
	Timestamp     string `json:"timestamp"`
	Error         string `json:"error,omitempty"`
}

// Provider 每個 AI 後端都必須實作的能力
type Provider interface {
	// GenerateMix 呼叫後端、解析、驗證並加上 AI metadata
	GenerateMix(ctx context.Context, targetBrand, targetName string, palette []PaletteEntry) (*Recipe, error)

	// BuildPrompt 相同輸入必須產生逐位元組相同的 prompt
	BuildPrompt(targetBrand, targetName string, palette []PaletteEntry) string

	// ParseResponse 從原始文字取出 JSON
	ParseResponse(text string) (any, error)

	// ValidateRecipe 驗證解析後的食譜結構
	ValidateRecipe(recipe any) error

	// TestConnection 最小往返測試，不回傳錯誤
	TestConnection(ctx context.Context) ConnectionStatus

	// Complete 送出 prompt 並回傳原始文字
	Complete(ctx context.Context, prompt string) (string, error)

	// Info provider 名稱、模型與傳輸方式
	Info() Info

	// Ready 建構路徑所需的內部 handle 是否存在
	Ready() bool
}

// Base 提供預設的解析與驗證實作，具體 provider 內嵌使用
type Base struct{}

// ParseResponse 預設 JSON 擷取
func (Base) ParseResponse(text string) (any, error) {
	return ParseResponse(text)
}

// ValidateRecipe 委派給共用驗證器
func (Base) ValidateRecipe(recipe any) error {
	return ValidateRecipe(recipe)
}
