package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/pkg/common"
)

// paintModel paints 資料表
type paintModel struct {
	ID         string         `gorm:"primaryKey;size:36"`
	OwnerID    string         `gorm:"index;size:64;not null"`
	Brand      string         `gorm:"not null"`
	Name       string         `gorm:"not null"`
	Reference  string         `gorm:"not null"`
	Color      *string        `gorm:"size:7"`
	IsMix      bool           `gorm:"index;not null"`
	Notes      string         `gorm:"not null"`
	InStock    bool           `gorm:"not null"`
	Recipe     datatypes.JSON
	AIMetadata datatypes.JSON
	CreatedAt  time.Time      `gorm:"index"`
	UpdatedAt  time.Time
}

func (paintModel) TableName() string {
	return "paints"
}

// GormStore 以 gorm 儲存顏料（postgres 或 sqlite）
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenGormStore 依 driver 開啟資料庫並建立資料表
func OpenGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.StorePostgres:
		dialector = postgres.Open(dsn)
	case config.StoreSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	common.LogInfo("SQL 顏料儲存已連線", zap.String("driver", driver))
	return NewGormStore(db)
}

// NewGormStore 使用既有連線並自動遷移資料表
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&paintModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate paints table: %w", err)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

// Seed 直接寫入原始紀錄
func (s *GormStore) Seed(ctx context.Context, records ...Record) error {
	for _, r := range records {
		m, err := modelFrom(r)
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
			return fmt.Errorf("failed to seed paint: %w", err)
		}
	}
	return nil
}

// ListByOwner 列出使用者所有顏料，新到舊
func (s *GormStore) ListByOwner(ctx context.Context, ownerID string) ([]paint.Paint, error) {
	var models []paintModel
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list paints: %w", err)
	}

	out := make([]paint.Paint, 0, len(models))
	for _, m := range models {
		out = append(out, decodeForRead(m.record()))
	}
	sortNewestFirst(out)
	return out, nil
}

// CreateOwned 建立顏料
func (s *GormStore) CreateOwned(ctx context.Context, ownerID string, d paint.Draft) (paint.Paint, error) {
	p, err := newPaint(ownerID, d, s.now())
	if err != nil {
		return paint.Paint{}, err
	}
	m, err := modelFromPaint(p)
	if err != nil {
		return paint.Paint{}, err
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return paint.Paint{}, fmt.Errorf("failed to create paint: %w", err)
	}
	return p, nil
}

// Get 取得單一顏料
func (s *GormStore) Get(ctx context.Context, id string) (paint.Paint, error) {
	var m paintModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return paint.Paint{}, ErrNotFound
		}
		return paint.Paint{}, fmt.Errorf("failed to get paint: %w", err)
	}
	return decodeForRead(m.record()), nil
}

// Update 更新顏料
func (s *GormStore) Update(ctx context.Context, p paint.Paint) (paint.Paint, error) {
	existing, err := s.Get(ctx, p.ID)
	if err != nil {
		return paint.Paint{}, err
	}
	next, err := prepareUpdate(existing, p, s.now())
	if err != nil {
		return paint.Paint{}, err
	}
	m, err := modelFromPaint(next)
	if err != nil {
		return paint.Paint{}, err
	}
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return paint.Paint{}, fmt.Errorf("failed to update paint: %w", err)
	}
	return next, nil
}

// Delete 刪除顏料
func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&paintModel{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete paint: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMixes 所有混色顏料
func (s *GormStore) ListMixes(ctx context.Context) ([]Entry, error) {
	var models []paintModel
	if err := s.db.WithContext(ctx).
		Where("is_mix = ?", true).
		Order("id").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list mixes: %w", err)
	}

	entries := make([]Entry, 0, len(models))
	for _, m := range models {
		entries = append(entries, m.record().Decode())
	}
	return entries, nil
}

// Ping 檢查資料庫連線
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 關閉連線
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (m paintModel) record() Record {
	r := Record{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Brand:     m.Brand,
		Name:      m.Name,
		Reference: m.Reference,
		Color:     m.Color,
		IsMix:     m.IsMix,
		Notes:     m.Notes,
		InStock:   m.InStock,
		Recipe:    json.RawMessage(m.Recipe),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.AIMetadata) > 0 && string(m.AIMetadata) != "null" {
		var meta paint.AIMetadata
		if err := json.Unmarshal(m.AIMetadata, &meta); err == nil {
			r.AIMetadata = &meta
		}
	}
	return r
}

func modelFromPaint(p paint.Paint) (paintModel, error) {
	r, err := RecordFrom(p)
	if err != nil {
		return paintModel{}, err
	}
	return modelFrom(r)
}

func modelFrom(r Record) (paintModel, error) {
	m := paintModel{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Brand:     r.Brand,
		Name:      r.Name,
		Reference: r.Reference,
		Color:     r.Color,
		IsMix:     r.IsMix,
		Notes:     r.Notes,
		InStock:   r.InStock,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if len(r.Recipe) > 0 {
		m.Recipe = datatypes.JSON(r.Recipe)
	}
	if r.AIMetadata != nil {
		raw, err := json.Marshal(r.AIMetadata)
		if err != nil {
			return paintModel{}, fmt.Errorf("failed to encode ai metadata: %w", err)
		}
		m.AIMetadata = datatypes.JSON(raw)
	}
	return m, nil
}
