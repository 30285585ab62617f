package service

import (
	"errors"
	"fmt"

	"card-server/internal/model"
	"card-server/internal/pkg/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgentLedger 代理余额账本
// 同一代理上的扣费与充值串行化执行，余额任何时刻不为负
type AgentLedger struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewAgentLedger(db *gorm.DB) *AgentLedger {
	return &AgentLedger{db: db, log: logger.With("ledger")}
}

// Debit 扣减代理余额并追加流水
// 余额不足返回 ErrInsufficientBalance，扣费与流水同一事务
func (l *AgentLedger) Debit(agentID string, amount float64, reason model.TransactionReason, remark string) error {
	if amount < 0 {
		return fmt.Errorf("扣费金额不能为负: %f", amount)
	}
	return l.db.Transaction(func(tx *gorm.DB) error {
		return l.debitTx(tx, agentID, amount, reason, remark)
	})
}

// debitTx 在既有事务内扣费，供铸卡扣费复用
func (l *AgentLedger) debitTx(tx *gorm.DB, agentID string, amount float64, reason model.TransactionReason, remark string) error {
	// 行锁串行化同一代理上的并发扣费/充值
	var agent model.Agent
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&agent, "id = ?", agentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAgentNotFound
		}
		return err
	}

	if agent.Balance < amount {
		l.log.Warn().Str("agent_id", agentID).Float64("balance", agent.Balance).Float64("amount", amount).Msg("余额不足")
		return ErrInsufficientBalance
	}

	after := agent.Balance - amount
	if err := tx.Model(&agent).Update("balance", after).Error; err != nil {
		return err
	}

	record := model.AgentTransaction{
		AgentID:       agent.ID,
		Amount:        -amount,
		BeforeBalance: agent.Balance,
		AfterBalance:  after,
		Reason:        reason,
		Remark:        remark,
	}
	return tx.Create(&record).Error
}

// Credit 增加代理余额并追加流水
func (l *AgentLedger) Credit(agentID string, amount float64, remark string) error {
	if amount < 0 {
		return fmt.Errorf("充值金额不能为负: %f", amount)
	}
	return l.db.Transaction(func(tx *gorm.DB) error {
		var agent model.Agent
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&agent, "id = ?", agentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAgentNotFound
			}
			return err
		}

		after := agent.Balance + amount
		if err := tx.Model(&agent).Update("balance", after).Error; err != nil {
			return err
		}

		record := model.AgentTransaction{
			AgentID:       agent.ID,
			Amount:        amount,
			BeforeBalance: agent.Balance,
			AfterBalance:  after,
			Reason:        model.TransactionReasonRecharge,
			Remark:        remark,
		}
		return tx.Create(&record).Error
	})
}

// ToggleActive 启用/禁用代理
// 禁用只阻止后续铸卡，不影响其已铸造的卡密
func (l *AgentLedger) ToggleActive(agentID string, active bool) error {
	res := l.db.Model(&model.Agent{}).Where("id = ?", agentID).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAgentNotFound
	}
	return nil
}
