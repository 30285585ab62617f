package handler

import (
	"strconv"
	"time"

	"card-server/internal/model"
	"card-server/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct{}

func NewStatisticsHandler() *StatisticsHandler {
	return &StatisticsHandler{}
}

// activeDeviceWindow 设备在线判定窗口
const activeDeviceWindow = 180 * time.Second

// Dashboard 控制台统计
func (h *StatisticsHandler) Dashboard(c *gin.Context) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var totalApps, totalCards, usedCards, todayNewCards int64
	model.DB.Model(&model.Application{}).Count(&totalApps)
	model.DB.Model(&model.Card{}).Count(&totalCards)
	model.DB.Model(&model.Card{}).Where("status = ?", model.CardStatusActive).Count(&usedCards)
	model.DB.Model(&model.Card{}).Where("created_at >= ?", today).Count(&todayNewCards)

	// 在线设备: 绑定所属卡密仍在有效期内
	var activeDevices int64
	model.DB.Model(&model.DeviceBinding{}).
		Joins("JOIN cards ON cards.id = device_bindings.card_id AND cards.deleted_at IS NULL").
		Where("cards.status = ? AND cards.expires_at > ?", model.CardStatusActive, now).
		Count(&activeDevices)

	var totalRevenue float64
	model.DB.Model(&model.Card{}).
		Where("status = ?", model.CardStatusActive).
		Select("COALESCE(SUM(price), 0)").
		Scan(&totalRevenue)

	var todayHeartbeats int64
	model.DB.Model(&model.HeartbeatLog{}).Where("created_at >= ?", today).Count(&todayHeartbeats)

	response.Success(c, gin.H{
		"total_apps":       totalApps,
		"total_cards":      totalCards,
		"used_cards":       usedCards,
		"today_new_cards":  todayNewCards,
		"active_devices":   activeDevices,
		"total_revenue":    totalRevenue,
		"today_heartbeats": todayHeartbeats,
	})
}

// RecentHeartbeats 最近心跳记录
func (h *StatisticsHandler) RecentHeartbeats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := model.DB.Model(&model.HeartbeatLog{})
	if appID := c.Query("app_id"); appID != "" {
		query = query.Where("app_id = ?", appID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var logs []model.HeartbeatLog
	query.Order("created_at DESC").Limit(limit).Find(&logs)

	response.Success(c, logs)
}

// ActiveDevices 在线设备列表
// 以最近一次心跳时间判定在线
func (h *StatisticsHandler) ActiveDevices(c *gin.Context) {
	now := time.Now()
	cutoff := now.Add(-activeDeviceWindow)

	query := model.DB.Model(&model.DeviceBinding{}).Where("last_seen_at >= ?", cutoff)
	if appID := c.Query("app_id"); appID != "" {
		query = query.Where("app_id = ?", appID)
	}

	var bindings []model.DeviceBinding
	query.Order("last_seen_at DESC").Limit(200).Find(&bindings)

	items := make([]gin.H, 0, len(bindings))
	for _, b := range bindings {
		var card model.Card
		if err := model.DB.First(&card, "id = ?", b.CardID).Error; err != nil {
			continue
		}
		if card.IsExpired(now) {
			continue
		}
		items = append(items, gin.H{
			"device_id":      b.DeviceID,
			"app_id":         b.AppID,
			"card_key":       card.CardKey,
			"ip_address":     b.IPAddress,
			"bound_at":       b.BoundAt,
			"last_seen_at":   b.LastSeenAt,
			"expires_at":     card.ExpiresAt,
			"remaining_days": card.RemainingDays(now),
		})
	}

	response.Success(c, gin.H{
		"count": len(items),
		"list":  items,
	})
}
