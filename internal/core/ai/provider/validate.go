package provider

import (
	"paint-mixer/internal/pkg/common"
)

// ValidateRecipe 驗證 AI 回傳的食譜，遇到第一個錯誤即停止
//
// 此時 paintId 仍是 AI 提供的值，尚未對應 palette。
func ValidateRecipe(recipe any) error {
	obj, ok := recipe.(map[string]any)
	if !ok || obj == nil {
		return common.NewStructureError("Invalid recipe structure")
	}

	brand, _ := obj["targetBrand"].(string)
	name, _ := obj["targetName"].(string)
	if brand == "" || name == "" {
		return common.NewStructureError("Missing target brand or name")
	}

	components, ok := obj["components"].([]any)
	if !ok || len(components) < 2 {
		return common.NewStructureError("Recipe must have at least 2 components")
	}

	for _, item := range components {
		c, _ := item.(map[string]any)
		if common.StringValue(c["paintId"]) == "" {
			return common.NewStructureError("Component missing paintId")
		}
		drops, ok := common.IntValue(c["drops"])
		if !ok || drops <= 0 {
			return common.NewStructureError("Drops must be positive integers")
		}
	}

	if raw, present := obj["confidence"]; present {
		confidence, ok := common.FloatValue(raw)
		if !ok || confidence < 0 || confidence > 1 {
			return common.NewStructureError("Confidence must be between 0 and 1")
		}
	}

	return nil
}
