package model

import (
	"card-server/internal/pkg/crypto"
)

// Agent 代理模型
// 余额只能通过流水操作变更，禁用代理不影响其已铸造的卡密
type Agent struct {
	BaseModel
	Username string  `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Password string  `gorm:"type:varchar(255);not null" json:"-"`
	Balance  float64 `gorm:"default:0" json:"balance"`
	Discount float64 `gorm:"default:1" json:"discount"` // 折扣率 (0.0-1.0)
	IsActive bool    `gorm:"default:true" json:"is_active"`
	Remark   string  `gorm:"type:varchar(255)" json:"remark"`
	// 关联
	Cards        []Card             `gorm:"foreignKey:AgentID" json:"cards,omitempty"`
	Transactions []AgentTransaction `gorm:"foreignKey:AgentID" json:"transactions,omitempty"`
}

func (Agent) TableName() string {
	return "agents"
}

// SetPassword 设置密码（加密）
func (a *Agent) SetPassword(password string) error {
	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	a.Password = hashed
	return nil
}

// CheckPassword 验证密码
func (a *Agent) CheckPassword(password string) bool {
	return crypto.CheckPassword(password, a.Password)
}

// TransactionReason 流水原因
type TransactionReason string

const (
	TransactionReasonMint     TransactionReason = "mint"     // 铸造卡密扣费
	TransactionReasonRecharge TransactionReason = "recharge" // 充值
)

// AgentTransaction 代理余额流水
// 只增不改，金额累加恒等于当前余额
type AgentTransaction struct {
	BaseModel
	AgentID       string            `gorm:"type:varchar(36);index;not null" json:"agent_id"`
	Amount        float64           `gorm:"not null" json:"amount"` // 变动金额，充值为正扣费为负
	BeforeBalance float64           `json:"before_balance"`
	AfterBalance  float64           `json:"after_balance"`
	Reason        TransactionReason `gorm:"type:varchar(20);not null" json:"reason"`
	Remark        string            `gorm:"type:varchar(255)" json:"remark"`
	// 关联
	Agent *Agent `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
}

func (AgentTransaction) TableName() string {
	return "agent_transactions"
}
