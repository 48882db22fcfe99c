package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/pkg/common"
)

// ErrNotFound 顏料不存在
var ErrNotFound = errors.New("paint not found")

// Store 顏料儲存；讀取時接受任何歷史食譜格式，寫入只寫標準格式
type Store interface {
	ListByOwner(ctx context.Context, ownerID string) ([]paint.Paint, error)
	CreateOwned(ctx context.Context, ownerID string, d paint.Draft) (paint.Paint, error)
	Get(ctx context.Context, id string) (paint.Paint, error)
	Update(ctx context.Context, p paint.Paint) (paint.Paint, error)
	Delete(ctx context.Context, id string) error
	// ListMixes 所有使用者的混色顏料，附帶是否需要回寫
	ListMixes(ctx context.Context) ([]Entry, error)
	// Ping 檢查後端是否可用
	Ping(ctx context.Context) error
	Close() error
}

// Entry 讀取時的正規化結果；Lossy 表示回寫會截斷小數值
type Entry struct {
	Paint        paint.Paint
	Format       paint.Format
	NeedsRewrite bool
	Lossy        bool
	Err          error
}

// Record 儲存層的顏料表示；recipe 保留原始 JSON
type Record struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"ownerId"`
	Brand      string            `json:"brand"`
	Name       string            `json:"name"`
	Reference  string            `json:"reference,omitempty"`
	Color      *string           `json:"color"`
	IsMix      bool              `json:"isMix"`
	Notes      string            `json:"notes"`
	InStock    bool              `json:"inStock"`
	Recipe     json.RawMessage   `json:"recipe,omitempty"`
	AIMetadata *paint.AIMetadata `json:"aiMetadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// RecordFrom 將顏料轉為儲存格式，食譜一律寫成標準格式
func RecordFrom(p paint.Paint) (Record, error) {
	r := Record{
		ID:         p.ID,
		OwnerID:    p.OwnerID,
		Brand:      p.Brand,
		Name:       p.Name,
		Reference:  p.Reference,
		Color:      p.Color,
		IsMix:      p.IsMix,
		Notes:      p.Notes,
		InStock:    p.InStock,
		AIMetadata: p.AIMetadata,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.Recipe != nil {
		raw, err := json.Marshal(p.Recipe.Canonical())
		if err != nil {
			return Record{}, fmt.Errorf("failed to encode recipe: %w", err)
		}
		r.Recipe = raw
	}
	return r, nil
}

// Decode 還原顏料並正規化食譜
//
// 無法辨識的食譜格式回傳錯誤，但顏料本身仍然可用（不含食譜）。
func (r Record) Decode() Entry {
	p := paint.Paint{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Brand:      r.Brand,
		Name:       r.Name,
		Reference:  r.Reference,
		Color:      r.Color,
		IsMix:      r.IsMix,
		Notes:      r.Notes,
		InStock:    r.InStock,
		AIMetadata: r.AIMetadata,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	n, err := p.ApplyStoredRecipe(r.Recipe)
	if err != nil {
		return Entry{Paint: p, Err: fmt.Errorf("paint %s: %w", r.ID, err)}
	}
	return Entry{Paint: p, Format: n.Format, NeedsRewrite: n.Changed, Lossy: n.Lossy}
}

// decodeForRead 讀取路徑：格式錯誤只記錄，不中斷
func decodeForRead(r Record) paint.Paint {
	e := r.Decode()
	if e.Err != nil {
		common.LogWarn("Stored recipe could not be normalized",
			zap.String("paint_id", r.ID),
			zap.Error(e.Err),
		)
	}
	return e.Paint
}

// newPaint 驗證草稿並建立新顏料
func newPaint(ownerID string, d paint.Draft, now time.Time) (paint.Paint, error) {
	if ownerID == "" {
		return paint.Paint{}, fmt.Errorf("owner id is required")
	}
	if err := d.Validate(); err != nil {
		return paint.Paint{}, err
	}
	return paint.NewPaint(common.GenerateUUID(), ownerID, d, now), nil
}

// prepareUpdate 套用更新：保留建立時間與擁有者
func prepareUpdate(existing, next paint.Paint, now time.Time) (paint.Paint, error) {
	if next.Color != nil && *next.Color != "" && !paint.ValidColor(*next.Color) {
		return paint.Paint{}, fmt.Errorf("color must be #RRGGBB, got %q", *next.Color)
	}
	next.OwnerID = existing.OwnerID
	next.CreatedAt = existing.CreatedAt
	next.UpdatedAt = now
	if next.Recipe != nil {
		next.Recipe = next.Recipe.Canonical()
	}
	return next, nil
}

// sortNewestFirst 依建立時間新到舊排序
func sortNewestFirst(paints []paint.Paint) {
	sort.SliceStable(paints, func(i, j int) bool {
		if paints[i].CreatedAt.Equal(paints[j].CreatedAt) {
			return paints[i].ID > paints[j].ID
		}
		return paints[i].CreatedAt.After(paints[j].CreatedAt)
	})
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Paint.ID < entries[j].Paint.ID
	})
}

// New 依設定建立儲存後端
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return NewMemoryStore(), nil
	case config.StoreRedis:
		return NewRedisStore(ctx, cfg)
	case config.StorePostgres, config.StoreSQLite:
		return OpenGormStore(cfg.Driver, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
