package handler

import (
	"errors"
	"strconv"

	"card-server/internal/middleware"
	"card-server/internal/model"
	"card-server/internal/pkg/logger"
	"card-server/internal/pkg/response"
	"card-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type AgentHandler struct {
	ledger *service.AgentLedger
	log    zerolog.Logger
}

func NewAgentHandler(ledger *service.AgentLedger) *AgentHandler {
	return &AgentHandler{ledger: ledger, log: logger.With("admin")}
}

// CreateAgentRequest 创建代理请求
type CreateAgentRequest struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required,min=6"`
	Discount float64 `json:"discount"`
	Remark   string  `json:"remark"`
}

// Create 创建代理
func (h *AgentHandler) Create(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if req.Discount < 0 || req.Discount > 1 {
		response.BadRequest(c, "折扣率必须在 0 到 1 之间")
		return
	}
	if req.Discount == 0 {
		req.Discount = 1
	}

	var existing model.Agent
	if err := model.DB.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		response.Conflict(c, "用户名已存在")
		return
	}

	agent := model.Agent{
		Username: req.Username,
		Discount: req.Discount,
		IsActive: true,
		Remark:   req.Remark,
	}
	if err := agent.SetPassword(req.Password); err != nil {
		response.ServerError(c, "密码加密失败")
		return
	}
	if err := model.DB.Create(&agent).Error; err != nil {
		response.ServerError(c, "创建代理失败: "+err.Error())
		return
	}
	response.Success(c, agent)
}

// List 获取代理列表
func (h *AgentHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	model.DB.Model(&model.Agent{}).Count(&total)

	var agents []model.Agent
	model.DB.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&agents)

	response.SuccessPage(c, agents, total, page, pageSize)
}

// Toggle 启用/禁用代理
// 禁用只阻止后续铸卡，已铸造的卡密继续有效
func (h *AgentHandler) Toggle(c *gin.Context) {
	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledger.ToggleActive(c.Param("id"), *req.IsActive); err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.NotFound(c, service.Message(err))
			return
		}
		response.ServerError(c, "更新状态失败: "+err.Error())
		return
	}

	h.log.Info().
		Str("operator", middleware.GetSubject(c)).
		Str("agent_id", c.Param("id")).
		Bool("is_active", *req.IsActive).
		Msg("代理状态变更")
	response.SuccessWithMessage(c, "状态更新成功", gin.H{"is_active": *req.IsActive})
}

// RechargeRequest 充值请求
type RechargeRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Remark string  `json:"remark"`
}

// Recharge 代理充值
func (h *AgentHandler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	agentID := c.Param("id")
	if err := h.ledger.Credit(agentID, req.Amount, req.Remark); err != nil {
		if errors.Is(err, service.ErrAgentNotFound) {
			response.NotFound(c, service.Message(err))
			return
		}
		response.ServerError(c, "充值失败: "+err.Error())
		return
	}

	h.log.Info().
		Str("operator", middleware.GetSubject(c)).
		Str("agent_id", agentID).
		Float64("amount", req.Amount).
		Msg("代理充值")

	var agent model.Agent
	model.DB.First(&agent, "id = ?", agentID)
	response.SuccessWithMessage(c, "充值成功", gin.H{"balance": agent.Balance})
}

// Transactions 代理余额流水
func (h *AgentHandler) Transactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	agentID := c.Param("id")
	var agent model.Agent
	if err := model.DB.First(&agent, "id = ?", agentID).Error; err != nil {
		response.NotFound(c, "代理不存在")
		return
	}

	query := model.DB.Model(&model.AgentTransaction{}).Where("agent_id = ?", agentID)

	var total int64
	query.Count(&total)

	var records []model.AgentTransaction
	query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&records)

	response.SuccessPage(c, records, total, page, pageSize)
}
