package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"paint-mixer/internal/core/paint"
	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/pkg/common"
)

const mixesKey = "paints:mixes"

// RedisStore 以 Redis 儲存顏料：paint:<id> 為 JSON，owner:<owner>:paints 為索引集合
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore 連線並測試 Redis
func NewRedisStore(ctx context.Context, cfg config.StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("Redis 顏料儲存已連線", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient 使用既有的 client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func paintKey(id string) string {
	return "paint:" + id
}

func ownerKey(ownerID string) string {
	return fmt.Sprintf("owner:%s:paints", ownerID)
}

// Seed 直接寫入原始紀錄
func (s *RedisStore) Seed(ctx context.Context, records ...Record) error {
	for _, r := range records {
		if err := s.write(ctx, r, ""); err != nil {
			return err
		}
	}
	return nil
}

// ListByOwner 列出使用者所有顏料，新到舊
func (s *RedisStore) ListByOwner(ctx context.Context, ownerID string) ([]paint.Paint, error) {
	ids, err := s.client.SMembers(ctx, ownerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list owner paints: %w", err)
	}
	records, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]paint.Paint, 0, len(records))
	for _, r := range records {
		out = append(out, decodeForRead(r))
	}
	sortNewestFirst(out)
	return out, nil
}

// CreateOwned 建立顏料
func (s *RedisStore) CreateOwned(ctx context.Context, ownerID string, d paint.Draft) (paint.Paint, error) {
	p, err := newPaint(ownerID, d, s.now())
	if err != nil {
		return paint.Paint{}, err
	}
	r, err := RecordFrom(p)
	if err != nil {
		return paint.Paint{}, err
	}
	if err := s.write(ctx, r, ""); err != nil {
		return paint.Paint{}, err
	}
	return p, nil
}

// Get 取得單一顏料
func (s *RedisStore) Get(ctx context.Context, id string) (paint.Paint, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return paint.Paint{}, err
	}
	return decodeForRead(r), nil
}

// Update 更新顏料
func (s *RedisStore) Update(ctx context.Context, p paint.Paint) (paint.Paint, error) {
	existing, err := s.Get(ctx, p.ID)
	if err != nil {
		return paint.Paint{}, err
	}
	next, err := prepareUpdate(existing, p, s.now())
	if err != nil {
		return paint.Paint{}, err
	}
	r, err := RecordFrom(next)
	if err != nil {
		return paint.Paint{}, err
	}
	if err := s.write(ctx, r, existing.OwnerID); err != nil {
		return paint.Paint{}, err
	}
	return next, nil
}

// Delete 刪除顏料與索引
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	r, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, paintKey(id))
		pipe.SRem(ctx, ownerKey(r.OwnerID), id)
		pipe.SRem(ctx, mixesKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete paint: %w", err)
	}
	return nil
}

// ListMixes 所有混色顏料
func (s *RedisStore) ListMixes(ctx context.Context) ([]Entry, error) {
	ids, err := s.client.SMembers(ctx, mixesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list mixes: %w", err)
	}
	records, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		if r.IsMix {
			entries = append(entries, r.Decode())
		}
	}
	sortEntries(entries)
	return entries, nil
}

// Ping 檢查 Redis 連線
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, id string) (Record, error) {
	data, err := s.client.Get(ctx, paintKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("failed to get paint: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal paint %s: %w", id, err)
	}
	return r, nil
}

func (s *RedisStore) load(ctx context.Context, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = paintKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load paints: %w", err)
	}

	records := make([]Record, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// 索引殘留，資料已不存在
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			common.LogWarn("Skipping unreadable paint record",
				zap.String("paint_id", ids[i]),
				zap.Error(err),
			)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// write 寫入紀錄並維護索引；previousOwner 不同時移除舊索引
func (s *RedisStore) write(ctx context.Context, r Record, previousOwner string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal paint: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, paintKey(r.ID), data, 0)
		pipe.SAdd(ctx, ownerKey(r.OwnerID), r.ID)
		if previousOwner != "" && previousOwner != r.OwnerID {
			pipe.SRem(ctx, ownerKey(previousOwner), r.ID)
		}
		if r.IsMix {
			pipe.SAdd(ctx, mixesKey, r.ID)
		} else {
			pipe.SRem(ctx, mixesKey, r.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save paint: %w", err)
	}
	return nil
}
