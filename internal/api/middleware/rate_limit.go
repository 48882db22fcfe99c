package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paint-mixer/internal/api/respond"
	"paint-mixer/internal/pkg/common"
)

// RateLimiter 令牌桶限流器
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

// NewRateLimiter 創建新的限流器
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(requests),
		capacity: float64(requests),
		rate:     float64(requests) / window.Seconds(),
		lastTime: time.Now(),
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow() bool {
	return rl.allowAt(time.Now())
}

func (rl *RateLimiter) allowAt(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := now.Sub(rl.lastTime).Seconds()
	rl.lastTime = now
	rl.tokens = min(rl.capacity, rl.tokens+elapsed*rl.rate)

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) idleSince(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return now.Sub(rl.lastTime)
}

// keyedLimiter 每個使用者（或 IP）各自一個令牌桶
//
// 閒置超過一個 window 的桶已完全回補，與新桶相同，惰性清除。
type keyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*RateLimiter
	requests  int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newKeyedLimiter(requests int, window time.Duration) *keyedLimiter {
	return &keyedLimiter{
		limiters:  make(map[string]*RateLimiter),
		requests:  requests,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// allow 取得 key 的令牌桶並消耗一個令牌
func (k *keyedLimiter) allow(key string) bool {
	now := k.now()
	return k.get(key, now).allowAt(now)
}

func (k *keyedLimiter) get(key string, now time.Time) *RateLimiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if now.Sub(k.lastSweep) > k.window {
		for name, rl := range k.limiters {
			if rl.idleSince(now) >= k.window {
				delete(k.limiters, name)
			}
		}
		k.lastSweep = now
	}

	rl, ok := k.limiters[key]
	if !ok {
		rl = NewRateLimiter(k.requests, k.window)
		rl.lastTime = now
		k.limiters[key] = rl
	}
	return rl
}

// size 目前保留的令牌桶數量
func (k *keyedLimiter) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// RateLimit 限流中間件；已驗證的請求以使用者計，其餘以 IP 計
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	limiters := newKeyedLimiter(requests, window)
	retryAfter := strconv.Itoa(int(window.Seconds()))

	return func(c *gin.Context) {
		key := UserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		if !limiters.allow(key) {
			common.LogInfo("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", retryAfter)
			respond.Error(c, common.ErrTooManyRequests, "Too many requests", gin.H{"retry_after": window.Seconds()})
			return
		}

		c.Next()
	}
}
