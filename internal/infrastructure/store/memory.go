package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/pkg/common"
)

// MemoryStore 程序內儲存
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	stats   memoryStats
	now     func() time.Time
}

// memoryStats 讀寫統計
type memoryStats struct {
	reads      int64
	writes     int64
	normalized int64
}

// NewMemoryStore 創建程序內儲存
func NewMemoryStore() *MemoryStore {
	common.LogInfo("使用記憶體顏料儲存")
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Seed 直接寫入原始紀錄（可包含舊版食譜格式）
func (m *MemoryStore) Seed(records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
}

// ListByOwner 列出使用者所有顏料，新到舊
func (m *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]paint.Paint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	atomic.AddInt64(&m.stats.reads, 1)

	out := make([]paint.Paint, 0)
	for _, r := range m.records {
		if r.OwnerID == ownerID {
			out = append(out, m.decode(r))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// CreateOwned 建立顏料
func (m *MemoryStore) CreateOwned(ctx context.Context, ownerID string, d paint.Draft) (paint.Paint, error) {
	p, err := newPaint(ownerID, d, m.now())
	if err != nil {
		return paint.Paint{}, err
	}
	if err := m.put(p); err != nil {
		return paint.Paint{}, err
	}
	return p, nil
}

// Get 取得單一顏料
func (m *MemoryStore) Get(ctx context.Context, id string) (paint.Paint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	atomic.AddInt64(&m.stats.reads, 1)

	r, ok := m.records[id]
	if !ok {
		return paint.Paint{}, ErrNotFound
	}
	return m.decode(r), nil
}

// Update 更新顏料
func (m *MemoryStore) Update(ctx context.Context, p paint.Paint) (paint.Paint, error) {
	existing, err := m.Get(ctx, p.ID)
	if err != nil {
		return paint.Paint{}, err
	}
	next, err := prepareUpdate(existing, p, m.now())
	if err != nil {
		return paint.Paint{}, err
	}
	if err := m.put(next); err != nil {
		return paint.Paint{}, err
	}
	return next, nil
}

// Delete 刪除顏料
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	atomic.AddInt64(&m.stats.writes, 1)
	return nil
}

// ListMixes 所有混色顏料
func (m *MemoryStore) ListMixes(ctx context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0)
	for _, r := range m.records {
		if r.IsMix {
			entries = append(entries, r.Decode())
		}
	}
	sortEntries(entries)
	return entries, nil
}

// Stats 讀寫統計
func (m *MemoryStore) Stats() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int64{
		"size":       int64(len(m.records)),
		"reads":      atomic.LoadInt64(&m.stats.reads),
		"writes":     atomic.LoadInt64(&m.stats.writes),
		"normalized": atomic.LoadInt64(&m.stats.normalized),
	}
}

// Ping 記憶體儲存永遠可用
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close 清空儲存
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	common.LogInfo("記憶體顏料儲存已關閉",
		zap.Int("數量", len(m.records)),
		zap.Int64("讀取次數", atomic.LoadInt64(&m.stats.reads)),
		zap.Int64("寫入次數", atomic.LoadInt64(&m.stats.writes)),
	)
	m.records = make(map[string]Record)
	return nil
}

func (m *MemoryStore) put(p paint.Paint) error {
	r, err := RecordFrom(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
	atomic.AddInt64(&m.stats.writes, 1)
	return nil
}

func (m *MemoryStore) decode(r Record) paint.Paint {
	e := r.Decode()
	if e.NeedsRewrite {
		atomic.AddInt64(&m.stats.normalized, 1)
	}
	if e.Err != nil {
		common.LogWarn("Stored recipe could not be normalized",
			zap.String("paint_id", r.ID),
			zap.Error(e.Err),
		)
	}
	return e.Paint
}
