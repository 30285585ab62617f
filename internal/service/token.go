package service

import (
	"errors"
	"time"

	"card-server/internal/model"
	"card-server/internal/pkg/keygen"
	"card-server/internal/pkg/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenService 授权凭证服务
// 凭证是不可猜测的随机串，关联关系存库，吊销即时生效
type TokenService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewTokenService(db *gorm.DB) *TokenService {
	return &TokenService{db: db, log: logger.With("tokens")}
}

// ValidationResult 凭证校验结果
// 校验失败时已解析出的字段仍会填充，供审计记录使用
type ValidationResult struct {
	App       *model.Application
	Card      *model.Card
	Binding   *model.DeviceBinding
	Token     *model.Token
	ExpiresAt *time.Time
	Remaining time.Duration
}

// Issue 为 (卡, 设备绑定) 签发凭证
// 同一对 (卡, 设备) 只保留一个有效凭证，重复激活返回既有凭证
func (s *TokenService) Issue(card *model.Card, binding *model.DeviceBinding) (*model.Token, error) {
	var token model.Token
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 绑定行锁必须是事务内第一条语句，同一绑定上的并发签发串行化，
		// 存在性检查在锁授予之后读到最新提交
		var locked model.DeviceBinding
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, "id = ?", binding.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBindingNotFound
			}
			return err
		}

		if err := tx.Where("card_id = ? AND binding_id = ? AND revoked_at IS NULL", card.ID, binding.ID).
			First(&token).Error; err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		token = model.Token{
			TokenValue: keygen.GenerateToken(),
			CardID:     card.ID,
			AppID:      card.AppID,
			BindingID:  binding.ID,
			DeviceID:   binding.DeviceID,
			IssuedAt:   time.Now(),
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Validate 校验凭证
// 依次检查应用、凭证存在性、应用归属、设备归属、卡密过期；
// 剩余有效期以当前时间实时计算，为零即视为过期
func (s *TokenService) Validate(appKey, tokenValue, deviceID string) (*ValidationResult, error) {
	result := &ValidationResult{}
	now := time.Now()

	var app model.Application
	if err := s.db.Where("app_key = ?", appKey).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, ErrAppNotFound
		}
		return result, err
	}
	result.App = &app
	if !app.IsActive {
		return result, ErrAppDisabled
	}

	var token model.Token
	if err := s.db.Where("token_value = ? AND revoked_at IS NULL", tokenValue).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, ErrTokenNotFound
		}
		return result, err
	}
	result.Token = &token

	if token.AppID != app.ID {
		return result, ErrAppMismatch
	}
	if token.DeviceID != deviceID {
		return result, ErrDeviceMismatch
	}

	var card model.Card
	if err := s.db.First(&card, "id = ?", token.CardID).Error; err != nil {
		return result, ErrTokenNotFound
	}
	result.Card = &card
	result.ExpiresAt = card.ExpiresAt

	var binding model.DeviceBinding
	if err := s.db.First(&binding, "id = ?", token.BindingID).Error; err != nil {
		// 绑定已被解除，凭证随之失效
		return result, ErrTokenNotFound
	}
	result.Binding = &binding

	remaining := time.Duration(card.RemainingSeconds(now)) * time.Second
	result.Remaining = remaining
	if remaining <= 0 {
		return result, ErrCardExpired
	}

	return result, nil
}
