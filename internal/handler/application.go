package handler

import (
	"strconv"

	"card-server/internal/model"
	"card-server/internal/pkg/keygen"
	"card-server/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct{}

func NewApplicationHandler() *ApplicationHandler {
	return &ApplicationHandler{}
}

// CreateApplicationRequest 创建应用请求
type CreateApplicationRequest struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	DeviceQuota       int    `json:"device_quota"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
}

// Create 创建应用
func (h *ApplicationHandler) Create(c *gin.Context) {
	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if req.DeviceQuota < model.MinDeviceQuota {
		req.DeviceQuota = model.MinDeviceQuota
	}
	if req.HeartbeatInterval < model.MinHeartbeatInterval {
		req.HeartbeatInterval = 60
	}

	app := model.Application{
		Name:              req.Name,
		AppKey:            keygen.GenerateAppKey(),
		AppSecret:         keygen.GenerateAppSecret(),
		Description:       req.Description,
		DeviceQuota:       req.DeviceQuota,
		HeartbeatInterval: req.HeartbeatInterval,
		IsActive:          true,
	}
	if err := model.DB.Create(&app).Error; err != nil {
		response.ServerError(c, "创建应用失败: "+err.Error())
		return
	}

	// Secret 仅在创建和详情时返回，列表不回显
	response.Success(c, gin.H{
		"id":                 app.ID,
		"name":               app.Name,
		"app_key":            app.AppKey,
		"app_secret":         app.AppSecret,
		"device_quota":       app.DeviceQuota,
		"heartbeat_interval": app.HeartbeatInterval,
		"is_active":          app.IsActive,
		"created_at":         app.CreatedAt,
	})
}

// List 获取应用列表
func (h *ApplicationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	model.DB.Model(&model.Application{}).Count(&total)

	var apps []model.Application
	model.DB.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&apps)

	response.SuccessPage(c, apps, total, page, pageSize)
}

// Get 获取应用详情
func (h *ApplicationHandler) Get(c *gin.Context) {
	var app model.Application
	if err := model.DB.First(&app, "id = ?", c.Param("id")).Error; err != nil {
		response.NotFound(c, "应用不存在")
		return
	}

	response.Success(c, gin.H{
		"id":                 app.ID,
		"name":               app.Name,
		"app_key":            app.AppKey,
		"app_secret":         app.AppSecret,
		"description":        app.Description,
		"device_quota":       app.DeviceQuota,
		"heartbeat_interval": app.HeartbeatInterval,
		"is_active":          app.IsActive,
		"created_at":         app.CreatedAt,
	})
}

// UpdateApplicationRequest 更新应用请求
type UpdateApplicationRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	DeviceQuota       int    `json:"device_quota"`
	HeartbeatInterval int    `json:"heartbeat_interval"`
}

// Update 更新应用
func (h *ApplicationHandler) Update(c *gin.Context) {
	var app model.Application
	if err := model.DB.First(&app, "id = ?", c.Param("id")).Error; err != nil {
		response.NotFound(c, "应用不存在")
		return
	}

	var req UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if req.Name != "" {
		app.Name = req.Name
	}
	app.Description = req.Description
	if req.DeviceQuota >= model.MinDeviceQuota {
		app.DeviceQuota = req.DeviceQuota
	}
	if req.HeartbeatInterval >= model.MinHeartbeatInterval {
		app.HeartbeatInterval = req.HeartbeatInterval
	}

	if err := model.DB.Save(&app).Error; err != nil {
		response.ServerError(c, "更新应用失败: "+err.Error())
		return
	}
	response.Success(c, app)
}

// ToggleRequest 启用/禁用请求
type ToggleRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// Toggle 启用/禁用应用
// 禁用后该应用下所有卡密的激活与心跳立即失败
func (h *ApplicationHandler) Toggle(c *gin.Context) {
	var app model.Application
	if err := model.DB.First(&app, "id = ?", c.Param("id")).Error; err != nil {
		response.NotFound(c, "应用不存在")
		return
	}

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := model.DB.Model(&app).Update("is_active", *req.IsActive).Error; err != nil {
		response.ServerError(c, "更新状态失败: "+err.Error())
		return
	}
	response.SuccessWithMessage(c, "状态更新成功", gin.H{"is_active": *req.IsActive})
}

// Delete 删除应用
func (h *ApplicationHandler) Delete(c *gin.Context) {
	var app model.Application
	if err := model.DB.First(&app, "id = ?", c.Param("id")).Error; err != nil {
		response.NotFound(c, "应用不存在")
		return
	}

	if err := model.DB.Delete(&app).Error; err != nil {
		response.ServerError(c, "删除应用失败: "+err.Error())
		return
	}
	response.SuccessWithMessage(c, "应用已删除", nil)
}

// RegenerateSecret 重新生成应用 Secret
func (h *ApplicationHandler) RegenerateSecret(c *gin.Context) {
	var app model.Application
	if err := model.DB.First(&app, "id = ?", c.Param("id")).Error; err != nil {
		response.NotFound(c, "应用不存在")
		return
	}

	secret := keygen.GenerateAppSecret()
	if err := model.DB.Model(&app).Update("app_secret", secret).Error; err != nil {
		response.ServerError(c, "重置密钥失败: "+err.Error())
		return
	}
	response.Success(c, gin.H{"app_key": app.AppKey, "app_secret": secret})
}
