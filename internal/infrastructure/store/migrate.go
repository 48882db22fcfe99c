package store

import (
	"context"

	"go.uber.org/zap"

	"paint-mixer/internal/pkg/common"
)

// Summary 食譜正規化結果
type Summary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
	Lossy   int `json:"lossy"`
}

// NormalizeRecipes 將所有混色的食譜改寫為標準格式
//
// 已是標準格式且沒有備註需要搬移的顏料略過；無法辨識的格式計入錯誤，不改寫。
// drops 或 percentage 帶小數的食譜計入 Lossy，保留原值等待人工處理。
// dryRun 時只統計不寫入。
func NormalizeRecipes(ctx context.Context, s Store, dryRun bool) (Summary, error) {
	entries, err := s.ListMixes(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Total: len(entries)}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if e.Err != nil {
			summary.Errors++
			common.LogError("Recipe normalization failed",
				zap.String("paint_id", e.Paint.ID),
				zap.Error(e.Err),
			)
			continue
		}
		if !e.NeedsRewrite {
			summary.Skipped++
			continue
		}
		if e.Lossy {
			summary.Lossy++
			common.LogWarn("Recipe has fractional values, left unchanged",
				zap.String("paint_id", e.Paint.ID),
				zap.String("from_format", e.Format.String()),
			)
			continue
		}

		if !dryRun {
			if _, err := s.Update(ctx, e.Paint); err != nil {
				summary.Errors++
				common.LogError("Failed to write normalized recipe",
					zap.String("paint_id", e.Paint.ID),
					zap.Error(err),
				)
				continue
			}
		}
		summary.Updated++
		common.LogInfo("Recipe normalized",
			zap.String("paint_id", e.Paint.ID),
			zap.String("paint_name", e.Paint.Name),
			zap.String("from_format", e.Format.String()),
			zap.Bool("dry_run", dryRun),
		)
	}
	return summary, nil
}
