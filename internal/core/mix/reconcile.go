package mix

import (
	"strings"

	"go.uber.org/zap"

	"paint-mixer/internal/core/ai/provider"
	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/pkg/common"
)

// Reconcile 將 AI 回傳的 paintId 對應回使用者的 palette
//
// 先比對 id，再做不分大小寫的名稱比對。找不到的成分保留原值並標記 Unresolved。
func Reconcile(components []provider.RecipeComponent, palette []paint.Paint) []paint.Component {
	out := make([]paint.Component, 0, len(components))
	for _, c := range components {
		p := findByID(c.PaintID, palette)
		if p == nil {
			p = findFuzzy(c.PaintID, palette)
		}
		if p == nil {
			common.LogWarn("Could not find paint for component",
				zap.String("paint_id", c.PaintID),
				zap.Int("drops", c.Drops),
				zap.Int("percentage", c.Percentage),
			)
			out = append(out, paint.Component{
				PaintID:    c.PaintID,
				Drops:      c.Drops,
				Percentage: c.Percentage,
				Unresolved: true,
			})
			continue
		}
		out = append(out, paint.Component{
			PaintID:    p.ID,
			PaintName:  p.Name,
			Brand:      p.Brand,
			Drops:      c.Drops,
			Color:      p.Color,
			Percentage: c.Percentage,
		})
	}
	return out
}

// TotalDrops 加總滴數
func TotalDrops(components []paint.Component) int {
	total := 0
	for _, c := range components {
		total += c.Drops
	}
	return total
}

func findByID(id string, palette []paint.Paint) *paint.Paint {
	for i := range palette {
		if palette[i].ID == id {
			return &palette[i]
		}
	}
	return nil
}

// findFuzzy 依 palette 順序掃描一次，第一個符合者勝出
//
// 比對 name、brand 與 "brand name"：相等或任一方包含另一方即算符合。
func findFuzzy(raw string, palette []paint.Paint) *paint.Paint {
	term := strings.ToLower(strings.TrimSpace(raw))
	if term == "" {
		return nil
	}

	for i := range palette {
		name := strings.ToLower(strings.TrimSpace(palette[i].Name))
		brand := strings.ToLower(strings.TrimSpace(palette[i].Brand))
		full := strings.TrimSpace(brand + " " + name)
		if containsEither(term, name) || containsEither(term, brand) || containsEither(term, full) {
			return &palette[i]
		}
	}
	return nil
}

// containsEither 相等或任一方包含另一方；空字串不算符合
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
