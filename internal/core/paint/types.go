package paint

import (
	"fmt"
	"regexp"
	"time"
)

// Paint 使用者 palette 中的一筆顏料（實體顏料或混色）
type Paint struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"-"`
	Brand      string      `json:"brand"`
	Name       string      `json:"name"`
	Reference  string      `json:"reference,omitempty"`
	Color      *string     `json:"color"`
	IsMix      bool        `json:"isMix"`
	Notes      string      `json:"notes"`
	InStock    bool        `json:"inStock"`
	Recipe     *Recipe     `json:"recipe,omitempty"`
	AIMetadata *AIMetadata `json:"aiMetadata,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Draft 建立顏料時的輸入
type Draft struct {
	Brand      string
	Name       string
	Reference  string
	Color      *string
	IsMix      bool
	Notes      string
	InStock    bool
	Recipe     *Recipe
	AIMetadata *AIMetadata
}

// Recipe 標準食譜格式：只有 components 與 totalDrops
type Recipe struct {
	Components []Component `json:"components"`
	TotalDrops int         `json:"totalDrops"`
}

// Component 食譜中的一種顏料
type Component struct {
	PaintID    string  `json:"paintId"`
	PaintName  string  `json:"paintName,omitempty"`
	Brand      string  `json:"brand,omitempty"`
	Drops      int     `json:"drops"`
	Color      *string `json:"color,omitempty"`
	Percentage int     `json:"percentage"`
	// Unresolved 標記無法對應到 palette 的 AI 原始值，不寫入儲存格式
	Unresolved bool `json:"unresolved,omitempty"`
}

// AIMetadata AI 生成來源紀錄
type AIMetadata struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Timestamp    string `json:"timestamp"`
	PromptLength int    `json:"promptLength"`
	BaseURL      string `json:"baseUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidColor 檢查是否為 #RRGGBB 格式
func ValidColor(c string) bool {
	return hexColorPattern.MatchString(c)
}

// Validate 檢查草稿必要欄位
func (d Draft) Validate() error {
	if d.Brand == "" || d.Name == "" {
		return fmt.Errorf("brand and name are required")
	}
	if d.Color != nil && *d.Color != "" && !ValidColor(*d.Color) {
		return fmt.Errorf("color must be #RRGGBB, got %q", *d.Color)
	}
	if d.IsMix != (d.Recipe != nil) {
		return fmt.Errorf("recipe must be present iff isMix")
	}
	return nil
}

// NewPaint 依草稿建立顏料，recipe 轉為標準格式
func NewPaint(id, ownerID string, d Draft, now time.Time) Paint {
	p := Paint{
		ID:         id,
		OwnerID:    ownerID,
		Brand:      d.Brand,
		Name:       d.Name,
		Reference:  d.Reference,
		Color:      d.Color,
		IsMix:      d.IsMix,
		Notes:      d.Notes,
		InStock:    d.InStock,
		AIMetadata: d.AIMetadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d.Recipe != nil {
		p.Recipe = d.Recipe.Canonical()
	}
	return p
}

// ColorString 回傳顏色或空字串
func (p Paint) ColorString() string {
	if p.Color == nil {
		return ""
	}
	return *p.Color
}
