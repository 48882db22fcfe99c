package paint

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"

	"paint-mixer/internal/pkg/common"
)

// Format 儲存中的食譜格式版本
type Format int

const (
	// FormatNone 沒有食譜
	FormatNone Format = iota
	// FormatLegacyArray 舊版：直接是 component 陣列
	FormatLegacyArray
	// FormatExtended 物件格式但帶有 notes/confidence/isManual/isEdited
	FormatExtended
	// FormatCanonical 只有 components 與 totalDrops
	FormatCanonical
)

func (f Format) String() string {
	switch f {
	case FormatLegacyArray:
		return "legacy-array"
	case FormatExtended:
		return "extended-object"
	case FormatCanonical:
		return "canonical"
	default:
		return "none"
	}
}

// ErrUnknownRecipeFormat 既不是陣列也不是帶 components 的物件
var ErrUnknownRecipeFormat = errors.New("unknown recipe format")

// extendedFields 舊版物件格式中需要移除的欄位
var extendedFields = []string{"notes", "confidence", "isManual", "isEdited"}

// Normalized 正規化結果
type Normalized struct {
	Recipe *Recipe
	// Notes 從 extended 格式移出的備註，由呼叫端搬到 Paint.Notes
	Notes  string
	Format Format
	// Changed 儲存內容與標準格式不同，需要回寫
	Changed bool
	// Lossy drops 或 percentage 有小數被截斷，回寫會遺失原值
	Lossy bool
}

// Normalize 將任一歷史格式轉為標準 {components, totalDrops}
//
// 判斷順序固定：先檢查陣列，再檢查帶 components 的物件。
// totalDrops 一律重新計算，不信任輸入值。
func Normalize(raw json.RawMessage) (Normalized, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Normalized{Format: FormatNone}, nil
	}

	var out Normalized
	switch trimmed[0] {
	case '[':
		var items []any
		if err := common.ParseJSONBytes(trimmed, &items); err != nil {
			return Normalized{}, err
		}
		out.Format = FormatLegacyArray
		components, lossy := componentsFrom(items, true)
		out.Recipe = &Recipe{Components: components}
		out.Lossy = lossy
	case '{':
		var obj map[string]any
		if err := common.ParseJSONBytes(trimmed, &obj); err != nil {
			return Normalized{}, err
		}
		rawComponents, ok := obj["components"]
		if !ok {
			return Normalized{}, ErrUnknownRecipeFormat
		}
		items, _ := rawComponents.([]any)
		out.Format = FormatCanonical
		for _, f := range extendedFields {
			if _, present := obj[f]; present {
				out.Format = FormatExtended
			}
		}
		if notes, ok := obj["notes"].(string); ok {
			out.Notes = notes
		}
		components, lossy := componentsFrom(items, false)
		out.Recipe = &Recipe{Components: components}
		out.Lossy = lossy
	default:
		return Normalized{}, ErrUnknownRecipeFormat
	}

	out.Recipe.TotalDrops = sumDrops(out.Recipe.Components)

	canonical, err := json.Marshal(out.Recipe)
	if err != nil {
		return Normalized{}, err
	}
	out.Changed = out.Format != FormatCanonical || !sameJSON(trimmed, canonical)
	return out, nil
}

// sameJSON 比較語意是否相同，忽略鍵順序與空白（例如 jsonb 會重排鍵）
func sameJSON(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}

// NormalizeValue 將任意 Go 值（例如 API 傳入的 map/slice）正規化
func NormalizeValue(v any) (Normalized, error) {
	if v == nil {
		return Normalized{Format: FormatNone}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return Normalized{}, err
	}
	return Normalize(raw)
}

// Canonical 回傳標準格式副本：移除標記並重算 totalDrops
func (r *Recipe) Canonical() *Recipe {
	if r == nil {
		return nil
	}
	components := make([]Component, len(r.Components))
	for i, c := range r.Components {
		c.Unresolved = false
		components[i] = c
	}
	return &Recipe{
		Components: components,
		TotalDrops: sumDrops(components),
	}
}

// ApplyStoredRecipe 讀取儲存的食譜並套用到 Paint
//
// extended 格式的 notes 只有在 Paint 本身沒有備註時才搬移（先寫入者優先）。
func (p *Paint) ApplyStoredRecipe(raw json.RawMessage) (Normalized, error) {
	n, err := Normalize(raw)
	if err != nil {
		return n, err
	}
	p.Recipe = n.Recipe
	if p.Notes == "" && n.Notes != "" {
		p.Notes = n.Notes
		n.Changed = true
	}
	return n, nil
}

func sumDrops(components []Component) int {
	total := 0
	for _, c := range components {
		total += c.Drops
	}
	return total
}

// componentsFrom 轉換 component；lossy 表示有小數值被截斷
func componentsFrom(items []any, legacy bool) ([]Component, bool) {
	components := make([]Component, 0, len(items))
	lossy := false
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		drops, truncDrops := numberOrZero(m["drops"])
		percentage, truncPct := numberOrZero(m["percentage"])
		lossy = lossy || truncDrops || truncPct
		c := Component{
			PaintID:    common.StringValue(m["paintId"]),
			Brand:      common.StringValue(m["brand"]),
			Drops:      drops,
			Percentage: percentage,
		}
		name, paintName := common.StringValue(m["name"]), common.StringValue(m["paintName"])
		if legacy {
			c.PaintName = firstNonEmpty(name, paintName)
		} else {
			c.PaintName = firstNonEmpty(paintName, name)
		}
		if color := common.StringValue(m["color"]); color != "" {
			c.Color = &color
		}
		components = append(components, c)
	}
	return components, lossy
}

// numberOrZero 缺少或非數值時回傳 0；小數向零取整並回報 truncated
func numberOrZero(v any) (n int, truncated bool) {
	if i, ok := common.IntValue(v); ok {
		return i, false
	}
	if f, ok := common.FloatValue(v); ok && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return int(f), true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
