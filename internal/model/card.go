package model

import (
	"time"
)

// CardType 卡密类型
type CardType string

const (
	CardTypeDay       CardType = "day"       // 天卡
	CardTypeWeek      CardType = "week"      // 周卡
	CardTypeMonth     CardType = "month"     // 月卡
	CardTypeYear      CardType = "year"      // 年卡
	CardTypePermanent CardType = "permanent" // 永久卡
)

// CardDurationDays 各类型卡密有效天数，永久卡按 100 年处理
var CardDurationDays = map[CardType]int{
	CardTypeDay:       1,
	CardTypeWeek:      7,
	CardTypeMonth:     30,
	CardTypeYear:      365,
	CardTypePermanent: 36500,
}

// ValidCardType 检查卡密类型是否合法
func ValidCardType(t CardType) bool {
	_, ok := CardDurationDays[t]
	return ok
}

// CardStatus 卡密持久化状态
// 过期和应用禁用属于派生状态，读取时实时计算
type CardStatus string

const (
	CardStatusUnused CardStatus = "unused"
	CardStatusActive CardStatus = "active"
)

// Card 卡密模型
type Card struct {
	BaseModel
	CardKey      string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"card_key"`
	AppID        string     `gorm:"type:varchar(36);index;not null" json:"app_id"`
	AgentID      *string    `gorm:"type:varchar(36);index" json:"agent_id"` // 铸造代理（可选）
	Type         CardType   `gorm:"type:varchar(20);not null" json:"type"`
	DurationDays int        `gorm:"not null" json:"duration_days"`
	Price        float64    `gorm:"default:0" json:"price"`
	Status       CardStatus `gorm:"type:varchar(20);default:unused;index" json:"status"`
	UsedBy       string     `gorm:"type:varchar(128)" json:"used_by"` // 首个激活设备
	ActivatedAt  *time.Time `json:"activated_at"`
	ExpiresAt    *time.Time `json:"expires_at"` // 激活时计算一次，之后不再变更
	// 关联
	Application *Application    `gorm:"foreignKey:AppID" json:"application,omitempty"`
	Agent       *Agent          `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Bindings    []DeviceBinding `gorm:"foreignKey:CardID" json:"bindings,omitempty"`
}

func (Card) TableName() string {
	return "cards"
}

// IsExpired 卡密是否已过期（派生状态）
func (c *Card) IsExpired(now time.Time) bool {
	if c.Status != CardStatusActive || c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// RemainingSeconds 剩余有效秒数，过期后为 0
func (c *Card) RemainingSeconds(now time.Time) int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int64(remaining.Seconds())
}

// RemainingDays 剩余有效天数，不足一天按一天计，过期后为 0
// 刚激活的 30 天卡返回 30，而不是被同请求内的时钟偏移截断成 29
func (c *Card) RemainingDays(now time.Time) int {
	return int((c.RemainingSeconds(now) + 86399) / 86400)
}
