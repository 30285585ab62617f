package service

import (
	"errors"
	"time"

	"card-server/internal/model"
	"card-server/internal/pkg/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BindingTable 设备绑定表
// 单张卡的并发绑定数不超过应用的 DeviceQuota
type BindingTable struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewBindingTable(db *gorm.DB) *BindingTable {
	return &BindingTable{db: db, log: logger.With("bindings")}
}

// Bind 将设备绑定到卡密
// 同一设备重复绑定幂等返回既有记录；计数检查与插入在卡行锁内完成，
// 并发绑定最多只会留下配额数量的记录
func (t *BindingTable) Bind(card *model.Card, deviceID, ipAddress, extraInfo string) (*model.DeviceBinding, error) {
	var binding model.DeviceBinding
	err := t.db.Transaction(func(tx *gorm.DB) error {
		// 卡行锁必须是事务内第一条语句：后续读取都发生在锁授予之后，
		// REPEATABLE READ 下不会拿到并发提交之前的快照
		var locked model.Card
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, "id = ?", card.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCardNotFound
			}
			return err
		}

		if err := tx.Where("card_id = ? AND device_id = ?", card.ID, deviceID).First(&binding).Error; err == nil {
			// 同设备重复激活不算错误
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var app model.Application
		if err := tx.First(&app, "id = ?", card.AppID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAppDisabled
			}
			return err
		}

		var count int64
		if err := tx.Model(&model.DeviceBinding{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("card_id = ?", card.ID).Count(&count).Error; err != nil {
			return err
		}
		if int(count) >= app.DeviceQuota {
			return ErrDeviceQuotaExceeded
		}

		now := time.Now()
		binding = model.DeviceBinding{
			CardID:     card.ID,
			AppID:      card.AppID,
			DeviceID:   deviceID,
			BoundAt:    now,
			LastSeenAt: &now,
			IPAddress:  ipAddress,
			ExtraInfo:  extraInfo,
		}
		return tx.Create(&binding).Error
	})
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

// Touch 成功心跳时刷新最后活跃时间，仅产生副作用
func (t *BindingTable) Touch(binding *model.DeviceBinding, ipAddress string) {
	now := time.Now()
	updates := map[string]interface{}{"last_seen_at": now}
	if ipAddress != "" {
		updates["ip_address"] = ipAddress
	}
	if err := t.db.Model(&model.DeviceBinding{}).Where("id = ?", binding.ID).Updates(updates).Error; err != nil {
		t.log.Warn().Err(err).Str("binding_id", binding.ID).Msg("刷新活跃时间失败")
	}
}

// Unbind 解绑设备并吊销其凭证
// 仅供管理端调用，正常请求流程不会触发
func (t *BindingTable) Unbind(cardID, deviceID string) error {
	return t.db.Transaction(func(tx *gorm.DB) error {
		var binding model.DeviceBinding
		if err := tx.Where("card_id = ? AND device_id = ?", cardID, deviceID).First(&binding).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBindingNotFound
			}
			return err
		}

		// 吊销标记而非删除，保留凭证记录
		now := time.Now()
		if err := tx.Model(&model.Token{}).
			Where("binding_id = ? AND revoked_at IS NULL", binding.ID).
			Update("revoked_at", now).Error; err != nil {
			return err
		}

		// 物理删除，释放 (card_id, device_id) 唯一索引供重新绑定
		return tx.Unscoped().Delete(&binding).Error
	})
}

// Count 当前绑定数
func (t *BindingTable) Count(cardID string) (int64, error) {
	var count int64
	err := t.db.Model(&model.DeviceBinding{}).Where("card_id = ?", cardID).Count(&count).Error
	return count, err
}
