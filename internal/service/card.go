package service

import (
	"errors"
	"fmt"
	"time"

	"card-server/internal/model"
	"card-server/internal/pkg/keygen"
	"card-server/internal/pkg/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 单次铸卡数量上限
const maxMintCount = 100

// 卡密生成冲突重试次数
const keyCollisionRetries = 5

// CardStore 卡密仓库
// 负责卡密的生命周期以及 unused → active 的原子翻转
type CardStore struct {
	db     *gorm.DB
	ledger *AgentLedger
	log    zerolog.Logger
}

func NewCardStore(db *gorm.DB, ledger *AgentLedger) *CardStore {
	return &CardStore{db: db, ledger: ledger, log: logger.With("cards")}
}

// FindByKey 按卡密查找
// 软删除的卡密视为已使用，不可再次激活
func (s *CardStore) FindByKey(cardKey string) (*model.Card, error) {
	var card model.Card
	if err := s.db.Where("card_key = ?", cardKey).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			var deleted model.Card
			if s.db.Unscoped().Where("card_key = ?", cardKey).First(&deleted).Error == nil {
				return nil, ErrCardAlreadyUsed
			}
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// Claim 将卡密从 unused 原子翻转为 active 并计算到期时间
// 状态条件更新保证并发激活恰好一个成功，其余得到 ErrCardAlreadyUsed
func (s *CardStore) Claim(cardKey, deviceID string) (*model.Card, error) {
	var card model.Card
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("card_key = ?", cardKey).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				var deleted model.Card
				if tx.Unscoped().Where("card_key = ?", cardKey).First(&deleted).Error == nil {
					return ErrCardAlreadyUsed
				}
				return ErrCardNotFound
			}
			return err
		}

		var app model.Application
		if err := tx.First(&app, "id = ?", card.AppID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAppDisabled
			}
			return err
		}
		if !app.IsActive {
			return ErrAppDisabled
		}

		now := time.Now()
		expiresAt := now.AddDate(0, 0, card.DurationDays)

		res := tx.Model(&model.Card{}).
			Where("id = ? AND status = ?", card.ID, model.CardStatusUnused).
			Updates(map[string]interface{}{
				"status":       model.CardStatusActive,
				"used_by":      deviceID,
				"activated_at": now,
				"expires_at":   expiresAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 并发激活中落败
			return ErrCardAlreadyUsed
		}

		card.Status = model.CardStatusActive
		card.UsedBy = deviceID
		card.ActivatedAt = &now
		card.ExpiresAt = &expiresAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("card_key", keygen.MaskCardKey(cardKey)).Str("device_id", keygen.MaskDeviceID(deviceID)).Msg("卡密已激活")
	return &card, nil
}

// Mint 批量生成卡密
// 指定代理时按 价格×数量×折扣 扣费，扣费与卡密写入同一事务
func (s *CardStore) Mint(appID string, cardType model.CardType, count int, price float64, agentID string) ([]model.Card, error) {
	if !model.ValidCardType(cardType) {
		return nil, fmt.Errorf("无效的卡密类型: %s", cardType)
	}
	if count <= 0 {
		count = 1
	}
	if count > maxMintCount {
		count = maxMintCount
	}

	var cards []model.Card
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var app model.Application
		if err := tx.First(&app, "id = ?", appID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAppNotFound
			}
			return err
		}

		var agentRef *string
		if agentID != "" {
			var agent model.Agent
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&agent, "id = ?", agentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrAgentNotFound
				}
				return err
			}
			if !agent.IsActive {
				return ErrAgentDisabled
			}

			cost := price * float64(count) * agent.Discount
			if cost > 0 {
				remark := fmt.Sprintf("铸造 %d 张 %s 卡", count, cardType)
				if err := s.ledger.debitTx(tx, agentID, cost, model.TransactionReasonMint, remark); err != nil {
					return err
				}
			}
			agentRef = &agent.ID
		}

		for i := 0; i < count; i++ {
			key, err := s.uniqueKey(tx)
			if err != nil {
				return err
			}
			card := model.Card{
				CardKey:      key,
				AppID:        appID,
				AgentID:      agentRef,
				Type:         cardType,
				DurationDays: model.CardDurationDays[cardType],
				Price:        price,
				Status:       model.CardStatusUnused,
			}
			if err := tx.Create(&card).Error; err != nil {
				return err
			}
			cards = append(cards, card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("app_id", appID).Str("type", string(cardType)).Int("count", len(cards)).Msg("卡密已生成")
	return cards, nil
}

// uniqueKey 生成不冲突的卡密，冲突时重试
func (s *CardStore) uniqueKey(tx *gorm.DB) (string, error) {
	for i := 0; i < keyCollisionRetries; i++ {
		key := keygen.GenerateCardKey()
		var count int64
		if err := tx.Model(&model.Card{}).Unscoped().Where("card_key = ?", key).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return key, nil
		}
	}
	return "", fmt.Errorf("卡密生成冲突重试次数用尽")
}

// Delete 删除未使用的卡密
// 已激活的卡密保留审计，不允许删除
func (s *CardStore) Delete(cardKey string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var card model.Card
		if err := tx.Where("card_key = ?", cardKey).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCardNotFound
			}
			return err
		}
		if card.Status != model.CardStatusUnused {
			return ErrCardInUse
		}
		// 状态条件删除，避免与并发激活竞争
		res := tx.Where("id = ? AND status = ?", card.ID, model.CardStatusUnused).Delete(&model.Card{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCardInUse
		}
		return nil
	})
}
