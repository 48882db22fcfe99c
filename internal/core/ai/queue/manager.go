package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"paint-mixer/internal/pkg/common"
)

var (
	// ErrQueueFull 等待中的請求已達上限
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed 隊列管理器已關閉
	ErrClosed = errors.New("queue manager is closed")
)

// Status 隊列狀態
type Status struct {
	Active         int64 `json:"active"`
	QueueLength    int64 `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 限制同時進行的 AI 後端呼叫
//
// 呼叫端取消後，已送出的後端呼叫仍會跑完並佔用名額，直到 release。
type Manager struct {
	slots     chan struct{}
	maxQueue  int
	waiting   atomic.Int64
	processed atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager 創建新的隊列管理器；workers 或 maxQueue 不為正時取 1
func NewManager(workers, maxQueue int) *Manager {
	if workers <= 0 {
		workers = 1
	}
	if maxQueue <= 0 {
		maxQueue = 1
	}
	return &Manager{
		slots:    make(chan struct{}, workers),
		maxQueue: maxQueue,
		done:     make(chan struct{}),
	}
}

// Acquire 取得一個名額；回傳的 release 必須呼叫一次
func (m *Manager) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	select {
	case m.slots <- struct{}{}:
		return m.releaser(), nil
	default:
	}

	if m.waiting.Add(1) > int64(m.maxQueue) {
		m.waiting.Add(-1)
		common.LogWarn("AI request queue is full",
			zap.Int("max_queue_size", m.maxQueue),
			zap.Int("workers", cap(m.slots)),
		)
		return nil, ErrQueueFull
	}
	defer m.waiting.Add(-1)

	select {
	case m.slots <- struct{}{}:
		return m.releaser(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, ErrClosed
	}
}

func (m *Manager) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.slots
			m.processed.Add(1)
		})
	}
}

// Status 獲取隊列狀態
func (m *Manager) Status() Status {
	return Status{
		Active:         int64(len(m.slots)),
		QueueLength:    m.waiting.Load(),
		ProcessedCount: m.processed.Load(),
		MaxQueueSize:   m.maxQueue,
		Workers:        cap(m.slots),
	}
}

// Close 關閉隊列管理器；等待中的請求回傳 ErrClosed
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}
