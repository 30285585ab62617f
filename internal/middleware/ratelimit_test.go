package middleware

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiterAllow(t *testing.T) {
	rl := NewMemoryLimiter(3, time.Minute)

	// 窗口内前 3 次放行，第 4 次拒绝
	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "第 %d 次应放行", i+1)
	}
	assert.False(t, rl.Allow("1.2.3.4"))

	// 不同 key 互不影响
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestMemoryLimiterWindowSlides(t *testing.T) {
	rl := NewMemoryLimiter(1, 50*time.Millisecond)

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("1.2.3.4"), "窗口滑出后应重新放行")
}

func TestRedisLimiterDegradesWhenUnavailable(t *testing.T) {
	// 连不上的地址，限流降级放行而不是拒绝请求
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	rl := NewRedisLimiter(client, "test", 1, time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
}
