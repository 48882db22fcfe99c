package provider

import (
	"context"
	"time"
	"unicode/utf8"

	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/pkg/common"
)

var now = time.Now

// Generate 共用生成流程：prompt → 呼叫後端 → 解析 → 驗證 → 加上 metadata
//
// 任一步驟失敗都包成 GenerationError，保留原始訊息。
func Generate(ctx context.Context, p Provider, targetBrand, targetName string, palette []PaletteEntry) (*Recipe, error) {
	info := p.Info()
	prompt := p.BuildPrompt(targetBrand, targetName, palette)

	start := now()
	text, err := p.Complete(ctx, prompt)
	common.LogAICall(info.Name, info.Model, now().Sub(start), err)
	if err != nil {
		return nil, &common.GenerationError{Provider: info.Name, Err: err}
	}

	parsed, err := p.ParseResponse(text)
	if err != nil {
		return nil, &common.GenerationError{Provider: info.Name, Err: err}
	}
	if err := p.ValidateRecipe(parsed); err != nil {
		return nil, &common.GenerationError{Provider: info.Name, Err: err}
	}

	recipe := recipeFrom(parsed.(map[string]any))
	recipe.AIMetadata = paint.AIMetadata{
		Provider:     info.Name,
		Model:        info.Model,
		Timestamp:    common.Timestamp(now()),
		PromptLength: utf8.RuneCountInString(prompt),
		BaseURL:      info.BaseURL,
	}
	return recipe, nil
}

// recipeFrom 將已驗證的 map 轉為 Recipe
func recipeFrom(obj map[string]any) *Recipe {
	r := &Recipe{
		TargetBrand: common.StringValue(obj["targetBrand"]),
		TargetName:  common.StringValue(obj["targetName"]),
		Explanation: common.StringValue(obj["explanation"]),
	}
	if c, ok := common.FloatValue(obj["confidence"]); ok {
		r.Confidence = c
	}
	items, _ := obj["components"].([]any)
	for _, item := range items {
		m, _ := item.(map[string]any)
		drops, _ := common.IntValue(m["drops"])
		percentage, _ := common.IntValue(m["percentage"])
		r.Components = append(r.Components, RecipeComponent{
			PaintID:    common.StringValue(m["paintId"]),
			Drops:      drops,
			Percentage: percentage,
		})
	}
	return r
}
