package mix

import (
	"context"

	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/core/paint"
)

// PaletteStore 混色服務需要的顏料儲存能力
type PaletteStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]paint.Paint, error)
	CreateOwned(ctx context.Context, ownerID string, d paint.Draft) (paint.Paint, error)
}

// ProviderSource 取得目前設定的 AI provider
type ProviderSource interface {
	Create(ctx context.Context, override string) (provider.Provider, error)
	Reset()
}

// Gate 限制同時進行的 AI 後端呼叫
type Gate interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Request 混色生成請求
type Request struct {
	TargetBrand     string
	TargetName      string
	TargetColor     string
	TargetReference string
}

// PreviewRecipe 預覽中的食譜；confidence 與說明只存在於預覽
type PreviewRecipe struct {
	Components []paint.Component `json:"components"`
	Notes      string            `json:"notes"`
	Confidence float64           `json:"confidence"`
	TotalDrops int               `json:"totalDrops"`
}

// Preview 未儲存的混色結果
type Preview struct {
	TargetBrand     string           `json:"targetBrand"`
	TargetName      string           `json:"targetName"`
	TargetColor     *string          `json:"targetColor"`
	TargetReference string           `json:"targetReference,omitempty"`
	Recipe          PreviewRecipe    `json:"recipe"`
	AIMetadata      paint.AIMetadata `json:"aiMetadata"`
}

// SavedMix 已儲存的混色顏料，附帶 AI 的信心與說明
type SavedMix struct {
	paint.Paint
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Outcome GenerateMix 的結果：有儲存時 Mix 不為 nil
type Outcome struct {
	Preview *Preview
	Mix     *SavedMix
}

// Body 回傳給呼叫端的內容
func (o *Outcome) Body() any {
	if o.Mix != nil {
		return o.Mix
	}
	return o.Preview
}

// PromptPreview prompt 試算結果，不呼叫後端
type PromptPreview struct {
	TargetBrand  string  `json:"targetBrand"`
	TargetName   string  `json:"targetName"`
	TargetColor  *string `json:"targetColor"`
	Prompt       string  `json:"prompt"`
	PaletteSize  int     `json:"paletteSize"`
	PromptLength int     `json:"promptLength"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
}

// RawResult 除錯用的原始 AI 回應
type RawResult struct {
	Prompt       string        `json:"prompt"`
	PromptLength int           `json:"promptLength"`
	RawResponse  string        `json:"rawResponse"`
	ResponseTime string        `json:"responseTime"`
	Provider     provider.Info `json:"providerInfo"`
}
