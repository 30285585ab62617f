package handler

import (
	"errors"
	"strconv"

	"card-server/internal/model"
	"card-server/internal/pkg/keygen"
	"card-server/internal/pkg/response"
	"card-server/internal/service"

	"github.com/gin-gonic/gin"
)

type CardHandler struct {
	cards    *service.CardStore
	bindings *service.BindingTable
}

func NewCardHandler(cards *service.CardStore, bindings *service.BindingTable) *CardHandler {
	return &CardHandler{cards: cards, bindings: bindings}
}

// CreateCardRequest 批量生成卡密请求
type CreateCardRequest struct {
	AppID   string         `json:"app_id" binding:"required"`
	Type    model.CardType `json:"type" binding:"required"`
	Count   int            `json:"count"`
	Price   float64        `json:"price"`
	AgentID string         `json:"agent_id"` // 代理铸卡时扣费
}

// Create 批量生成卡密
func (h *CardHandler) Create(c *gin.Context) {
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if req.Price < 0 {
		response.BadRequest(c, "价格不能为负")
		return
	}

	cards, err := h.cards.Mint(req.AppID, req.Type, req.Count, req.Price, req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAppNotFound):
			response.NotFound(c, service.Message(err))
		case errors.Is(err, service.ErrAgentNotFound):
			response.NotFound(c, service.Message(err))
		case errors.Is(err, service.ErrAgentDisabled):
			response.Forbidden(c, service.Message(err))
		case errors.Is(err, service.ErrInsufficientBalance):
			response.Conflict(c, service.Message(err))
		default:
			response.ServerError(c, "生成卡密失败: "+err.Error())
		}
		return
	}

	var result []gin.H
	for _, card := range cards {
		result = append(result, gin.H{
			"id":            card.ID,
			"card_key":      card.CardKey,
			"type":          card.Type,
			"duration_days": card.DurationDays,
			"price":         card.Price,
			"status":        card.Status,
			"created_at":    card.CreatedAt,
		})
	}
	response.Success(c, result)
}

// List 获取卡密列表
func (h *CardHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := model.DB.Model(&model.Card{})
	if appID := c.Query("app_id"); appID != "" {
		query = query.Where("app_id = ?", appID)
	}
	if agentID := c.Query("agent_id"); agentID != "" {
		query = query.Where("agent_id = ?", agentID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if cardType := c.Query("type"); cardType != "" {
		query = query.Where("type = ?", cardType)
	}
	if keyword := c.Query("keyword"); keyword != "" {
		query = query.Where("card_key LIKE ?", "%"+keyword+"%")
	}

	var total int64
	query.Count(&total)

	var cards []model.Card
	query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&cards)

	response.SuccessPage(c, cards, total, page, pageSize)
}

// Get 查询卡密详情，含绑定设备
func (h *CardHandler) Get(c *gin.Context) {
	var card model.Card
	if err := model.DB.Preload("Bindings").Where("card_key = ?", c.Param("card_key")).First(&card).Error; err != nil {
		response.NotFound(c, "卡密不存在")
		return
	}
	response.Success(c, card)
}

// Delete 删除卡密（仅未使用的）
func (h *CardHandler) Delete(c *gin.Context) {
	err := h.cards.Delete(c.Param("card_key"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCardNotFound):
			response.NotFound(c, service.Message(err))
		case errors.Is(err, service.ErrCardInUse):
			response.Conflict(c, service.Message(err))
		default:
			response.ServerError(c, "删除卡密失败: "+err.Error())
		}
		return
	}
	response.SuccessWithMessage(c, "卡密已删除", nil)
}

// UnbindRequest 解绑设备请求
type UnbindRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// Unbind 解绑设备并吊销其凭证
func (h *CardHandler) Unbind(c *gin.Context) {
	var card model.Card
	if err := model.DB.Where("card_key = ?", keygen.NormalizeCardKey(c.Param("card_key"))).First(&card).Error; err != nil {
		response.NotFound(c, "卡密不存在")
		return
	}

	var req UnbindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.bindings.Unbind(card.ID, req.DeviceID); err != nil {
		if errors.Is(err, service.ErrBindingNotFound) {
			response.NotFound(c, service.Message(err))
			return
		}
		response.ServerError(c, "解绑失败: "+err.Error())
		return
	}
	response.SuccessWithMessage(c, "解绑成功", nil)
}
