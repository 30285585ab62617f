package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"card-server/internal/pkg/logger"
	"card-server/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Limiter 速率限制器
// 计数允许近似，目的只是过载保护
type Limiter interface {
	Allow(key string) bool
}

// MemoryLimiter 内存滑动窗口限制器
type MemoryLimiter struct {
	requests map[string][]time.Time
	mu       sync.RWMutex
	limit    int           // 限制次数
	window   time.Duration // 时间窗口
}

// NewMemoryLimiter 创建内存限制器
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	rl := &MemoryLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	// 定期清理过期记录
	go rl.cleanup()
	return rl
}

// Allow 检查是否允许请求
func (rl *MemoryLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	// 过滤掉窗口外的请求
	var validRequests []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			validRequests = append(validRequests, t)
		}
	}

	if len(validRequests) >= rl.limit {
		rl.requests[key] = validRequests
		return false
	}

	rl.requests[key] = append(validRequests, now)
	return true
}

// cleanup 定期清理过期记录
func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		windowStart := now.Add(-rl.window)
		for key, times := range rl.requests {
			var validTimes []time.Time
			for _, t := range times {
				if t.After(windowStart) {
					validTimes = append(validTimes, t)
				}
			}
			if len(validTimes) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = validTimes
			}
		}
		rl.mu.Unlock()
	}
}

// RedisLimiter 基于 Redis 固定窗口计数的限制器
// 多副本部署时共享计数；Redis 不可用时放行并记日志
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	log    zerolog.Logger
}

// NewRedisLimiter 创建 Redis 限制器
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window, log: logger.With("ratelimit")}
}

// Allow 检查是否允许请求
func (rl *RedisLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	bucket := fmt.Sprintf("ratelimit:%s:%s:%d", rl.prefix, key, time.Now().Unix()/int64(rl.window.Seconds()))

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		// 降级放行，限流只做过载保护，不影响正确性
		rl.log.Warn().Err(err).Msg("Redis 限流不可用，已放行")
		return true
	}

	return incr.Val() <= int64(rl.limit)
}

// RateLimitMiddleware 速率限制中间件
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !limiter.Allow(key) {
			c.JSON(http.StatusTooManyRequests, response.Response{
				Code:    429,
				Message: "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
