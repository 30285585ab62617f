package handler

import (
	"time"

	"card-server/internal/config"
	"card-server/internal/middleware"
	"card-server/internal/model"
	"card-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// newLimiter 按配置选择限流后端
func newLimiter(rdb *redis.Client, prefix string, limit int) middleware.Limiter {
	if rdb != nil {
		return middleware.NewRedisLimiter(rdb, prefix, limit, time.Minute)
	}
	return middleware.NewMemoryLimiter(limit, time.Minute)
}

// SetupRouter 设置路由
func SetupRouter(r *gin.Engine) {
	cfg := config.Get()

	// 全局中间件
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeadersMiddleware())

	// Redis 仅用于限流计数，未启用时回退到内存窗口
	var rdb *redis.Client
	if cfg.Redis.Enabled && cfg.RateLimit.Backend == "redis" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// 速率限制器
	apiLimiter := newLimiter(rdb, "api", cfg.RateLimit.APIPerMinute)                   // 管理接口
	activateLimiter := newLimiter(rdb, "activate", cfg.RateLimit.ActivatePerMinute)    // 激活接口
	heartbeatLimiter := newLimiter(rdb, "heartbeat", cfg.RateLimit.HeartbeatPerMinute) // 心跳接口

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// 初始化服务
	ledger := service.NewAgentLedger(model.DB)
	cards := service.NewCardStore(model.DB, ledger)
	bindings := service.NewBindingTable(model.DB)
	tokens := service.NewTokenService(model.DB)
	activator := service.NewActivator(model.DB, cards, bindings, tokens)
	heartbeat := service.NewHeartbeatProcessor(model.DB, tokens, bindings)

	// 初始化 Handler
	clientHandler := NewClientHandler(cards, activator, heartbeat)
	appHandler := NewApplicationHandler()
	cardHandler := NewCardHandler(cards, bindings)
	agentHandler := NewAgentHandler(ledger)
	statsHandler := NewStatisticsHandler()

	api := r.Group("/api")

	// ==================== 客户端接口 ====================
	client := api.Group("/client")
	{
		client.POST("/activate", middleware.RateLimitMiddleware(activateLimiter), clientHandler.Activate)
		client.POST("/heartbeat", middleware.RateLimitMiddleware(heartbeatLimiter), clientHandler.Heartbeat)
		client.GET("/status", middleware.RateLimitMiddleware(heartbeatLimiter), clientHandler.Status)
		client.POST("/cards/check", middleware.RateLimitMiddleware(apiLimiter), clientHandler.CheckCard)
	}

	// ==================== 管理接口 ====================
	admin := api.Group("/admin")
	admin.Use(middleware.RateLimitMiddleware(apiLimiter))
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		apps := admin.Group("/apps")
		{
			apps.POST("", appHandler.Create)
			apps.GET("", appHandler.List)
			apps.GET("/:id", appHandler.Get)
			apps.PUT("/:id", appHandler.Update)
			apps.POST("/:id/toggle", appHandler.Toggle)
			apps.POST("/:id/regenerate-secret", appHandler.RegenerateSecret)
			apps.DELETE("/:id", appHandler.Delete)
		}

		adminCards := admin.Group("/cards")
		{
			adminCards.POST("", cardHandler.Create)
			adminCards.GET("", cardHandler.List)
			adminCards.GET("/:card_key", cardHandler.Get)
			adminCards.DELETE("/:card_key", cardHandler.Delete)
			adminCards.POST("/:card_key/unbind", cardHandler.Unbind)
		}

		agents := admin.Group("/agents")
		{
			agents.POST("", agentHandler.Create)
			agents.GET("", agentHandler.List)
			agents.POST("/:id/toggle", agentHandler.Toggle)
			agents.POST("/:id/recharge", agentHandler.Recharge)
			agents.GET("/:id/transactions", agentHandler.Transactions)
		}

		stats := admin.Group("/stats")
		{
			stats.GET("/dashboard", statsHandler.Dashboard)
			stats.GET("/heartbeats", statsHandler.RecentHeartbeats)
			stats.GET("/devices", statsHandler.ActiveDevices)
		}
	}
}
