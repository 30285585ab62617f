package service

import (
	"errors"
	"time"

	"card-server/internal/model"
	"card-server/internal/pkg/keygen"
	"card-server/internal/pkg/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// HeartbeatProcessor 心跳处理器
// 每次调用只做一轮校验、记账和响应，不在内部重试
type HeartbeatProcessor struct {
	db       *gorm.DB
	tokens   *TokenService
	bindings *BindingTable
	log      zerolog.Logger
}

func NewHeartbeatProcessor(db *gorm.DB, tokens *TokenService, bindings *BindingTable) *HeartbeatProcessor {
	return &HeartbeatProcessor{db: db, tokens: tokens, bindings: bindings, log: logger.With("heartbeat")}
}

// HeartbeatOutcome 一次心跳的结果
type HeartbeatOutcome struct {
	Authorized       bool
	Message          string
	ExpiresAt        *time.Time
	RemainingSeconds int64
	ServerTime       time.Time
}

// StatusSnapshot 只读状态查询结果
type StatusSnapshot struct {
	Authorized       bool
	Message          string
	ExpiresAt        *time.Time
	RemainingDays    int
	RemainingSeconds int64
	LastHeartbeat    *time.Time
}

// Check 心跳校验
// 成功时刷新设备活跃时间；无论成败都追加一条审计记录，
// 过期记为 expired，其余失败记为 invalid
func (p *HeartbeatProcessor) Check(appKey, tokenValue, deviceID, sourceAddr string) HeartbeatOutcome {
	now := time.Now()
	result, err := p.tokens.Validate(appKey, tokenValue, deviceID)

	if err != nil {
		status := model.HeartbeatStatusInvalid
		if errors.Is(err, ErrCardExpired) {
			status = model.HeartbeatStatusExpired
		}
		p.appendLog(result, deviceID, sourceAddr, status, Message(err))

		outcome := HeartbeatOutcome{
			Authorized: false,
			Message:    Message(err),
			ServerTime: now,
		}
		if errors.Is(err, ErrCardExpired) {
			outcome.ExpiresAt = result.ExpiresAt
		}
		return outcome
	}

	p.bindings.Touch(result.Binding, sourceAddr)
	p.appendLog(result, deviceID, sourceAddr, model.HeartbeatStatusSuccess, "心跳成功")

	return HeartbeatOutcome{
		Authorized:       true,
		Message:          "验证成功",
		ExpiresAt:        result.Card.ExpiresAt,
		RemainingSeconds: result.Card.RemainingSeconds(now),
		ServerTime:       now,
	}
}

// Status 只读状态查询
// 与 Check 相同的校验，但不刷新活跃时间也不写审计记录
func (p *HeartbeatProcessor) Status(appKey, tokenValue, deviceID string) StatusSnapshot {
	now := time.Now()
	result, err := p.tokens.Validate(appKey, tokenValue, deviceID)

	if err != nil {
		snapshot := StatusSnapshot{
			Authorized: false,
			Message:    Message(err),
		}
		if errors.Is(err, ErrCardExpired) {
			snapshot.ExpiresAt = result.ExpiresAt
		}
		return snapshot
	}

	return StatusSnapshot{
		Authorized:       true,
		Message:          "授权有效",
		ExpiresAt:        result.Card.ExpiresAt,
		RemainingDays:    result.Card.RemainingDays(now),
		RemainingSeconds: result.Card.RemainingSeconds(now),
		LastHeartbeat:    result.Binding.LastSeenAt,
	}
}

// appendLog 追加心跳审计记录，失败只记日志不影响响应
func (p *HeartbeatProcessor) appendLog(result *ValidationResult, deviceID, sourceAddr string, status model.HeartbeatStatus, message string) {
	appID := ""
	if result != nil && result.App != nil {
		appID = result.App.ID
	}
	entry := model.HeartbeatLog{
		AppID:     appID,
		DeviceID:  keygen.MaskDeviceID(deviceID),
		IPAddress: sourceAddr,
		Status:    status,
		Message:   message,
	}
	if err := p.db.Create(&entry).Error; err != nil {
		p.log.Error().Err(err).Msg("写入心跳记录失败")
	}
}
