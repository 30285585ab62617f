package handler

import (
	"net/http"
	"time"

	"card-server/internal/model"
	"card-server/internal/pkg/keygen"
	"card-server/internal/service"

	"github.com/gin-gonic/gin"
)

// ClientHandler 客户端接口
// 响应体直接携带 success/message，客户端会原样展示 message
type ClientHandler struct {
	cards     *service.CardStore
	activator *service.Activator
	heartbeat *service.HeartbeatProcessor
}

func NewClientHandler(cards *service.CardStore, activator *service.Activator, heartbeat *service.HeartbeatProcessor) *ClientHandler {
	return &ClientHandler{cards: cards, activator: activator, heartbeat: heartbeat}
}

// ActivateRequest 激活请求
type ActivateRequest struct {
	CardKey   string `json:"card_key" binding:"required"`
	DeviceID  string `json:"device_id" binding:"required"`
	ExtraInfo string `json:"extra_info"`
}

// Activate 卡密激活
func (h *ClientHandler) Activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "参数错误: " + err.Error()})
		return
	}

	token, card, err := h.activator.Activate(req.CardKey, req.DeviceID, c.ClientIP(), req.ExtraInfo)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": service.Message(err)})
		return
	}

	now := time.Now()
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "激活成功",
		"token":          token.TokenValue,
		"expires_at":     card.ExpiresAt,
		"remaining_days": card.RemainingDays(now),
	})
}

// HeartbeatRequest 心跳请求
type HeartbeatRequest struct {
	AppKey   string `json:"app_key" binding:"required"`
	Token    string `json:"token" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// Heartbeat 心跳验证
func (h *ClientHandler) Heartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "参数错误: " + err.Error()})
		return
	}

	outcome := h.heartbeat.Check(req.AppKey, req.Token, req.DeviceID, c.ClientIP())

	resp := gin.H{
		"success":     outcome.Authorized,
		"message":     outcome.Message,
		"server_time": outcome.ServerTime,
	}
	if outcome.ExpiresAt != nil {
		resp["expires_at"] = outcome.ExpiresAt
	}
	if outcome.Authorized {
		resp["remaining_seconds"] = outcome.RemainingSeconds
	}
	c.JSON(http.StatusOK, resp)
}

// Status 授权状态查询，只读不产生审计记录
func (h *ClientHandler) Status(c *gin.Context) {
	appKey := c.Query("app_key")
	token := c.Query("token")
	deviceID := c.Query("device_id")
	if appKey == "" || token == "" || deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"authorized": false, "message": "缺少参数"})
		return
	}

	snapshot := h.heartbeat.Status(appKey, token, deviceID)

	resp := gin.H{
		"authorized": snapshot.Authorized,
		"message":    snapshot.Message,
	}
	if snapshot.ExpiresAt != nil {
		resp["expires_at"] = snapshot.ExpiresAt
	}
	if snapshot.Authorized {
		resp["remaining_days"] = snapshot.RemainingDays
		resp["remaining_seconds"] = snapshot.RemainingSeconds
		resp["last_heartbeat"] = snapshot.LastHeartbeat
	}
	c.JSON(http.StatusOK, resp)
}

// CheckCardRequest 卡密状态查询请求
type CheckCardRequest struct {
	CardKey string `json:"card_key" binding:"required"`
}

// CheckCard 查询卡密状态（公开接口）
func (h *ClientHandler) CheckCard(c *gin.Context) {
	var req CheckCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "message": "参数错误: " + err.Error()})
		return
	}

	card, err := h.cards.FindByKey(keygen.NormalizeCardKey(req.CardKey))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "message": service.Message(err)})
		return
	}

	if card.Status == model.CardStatusActive {
		c.JSON(http.StatusOK, gin.H{
			"valid":          true,
			"is_used":        true,
			"expires_at":     card.ExpiresAt,
			"remaining_days": card.RemainingDays(time.Now()),
			"message":        "卡密已激活",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":         true,
		"is_used":       false,
		"card_type":     card.Type,
		"duration_days": card.DurationDays,
		"message":       "卡密未使用",
	})
}
