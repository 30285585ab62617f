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

// Activator 激活流程编排
// Claim → Bind → Issue，各步骤各自保证原子性
type Activator struct {
	db       *gorm.DB
	cards    *CardStore
	bindings *BindingTable
	tokens   *TokenService
	log      zerolog.Logger
}

func NewActivator(db *gorm.DB, cards *CardStore, bindings *BindingTable, tokens *TokenService) *Activator {
	return &Activator{db: db, cards: cards, bindings: bindings, tokens: tokens, log: logger.With("activation")}
}

// Activate 用卡密激活设备并签发凭证
// 未使用的卡密先原子认领；已激活的卡密上，已绑定设备幂等取回凭证，
// 新设备在配额允许时加入，配额耗尽时该卡密视为已被使用
func (a *Activator) Activate(cardKey, deviceID, ipAddress, extraInfo string) (*model.Token, *model.Card, error) {
	key := keygen.NormalizeCardKey(cardKey)

	card, err := a.cards.FindByKey(key)
	if err != nil {
		return nil, nil, err
	}

	claimed := false
	if card.Status == model.CardStatusUnused {
		c, err := a.cards.Claim(key, deviceID)
		switch {
		case err == nil:
			card = c
			claimed = true
		case errors.Is(err, ErrCardAlreadyUsed):
			// 认领竞争落败，按已激活路径继续
			if card, err = a.cards.FindByKey(key); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, err
		}
	}

	// 应用状态与过期均为派生条件，每次请求重新评估
	var app model.Application
	if err := a.db.First(&app, "id = ?", card.AppID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrAppDisabled
		}
		return nil, nil, err
	}
	if !app.IsActive {
		return nil, nil, ErrAppDisabled
	}
	if card.IsExpired(time.Now()) {
		return nil, card, ErrCardExpired
	}

	binding, err := a.bindings.Bind(card, deviceID, ipAddress, extraInfo)
	if err != nil {
		if errors.Is(err, ErrDeviceQuotaExceeded) && !claimed {
			// 配额耗尽的卡密对新设备而言等同已被使用
			return nil, card, ErrCardAlreadyUsed
		}
		return nil, card, err
	}

	token, err := a.tokens.Issue(card, binding)
	if err != nil {
		return nil, card, err
	}

	a.log.Info().
		Str("card_key", keygen.MaskCardKey(key)).
		Str("device_id", keygen.MaskDeviceID(deviceID)).
		Bool("claimed", claimed).
		Msg("激活成功")
	return token, card, nil
}
