package model

import (
	"time"
)

// DeviceBinding 设备绑定
// 同一张卡的绑定数受应用 DeviceQuota 约束，(card_id, device_id) 唯一
type DeviceBinding struct {
	BaseModel
	CardID     string     `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_card_device" json:"card_id"`
	AppID      string     `gorm:"type:varchar(36);index;not null" json:"app_id"`
	DeviceID   string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_card_device" json:"device_id"`
	BoundAt    time.Time  `json:"bound_at"`
	LastSeenAt *time.Time `json:"last_seen_at"`
	IPAddress  string     `gorm:"type:varchar(45)" json:"ip_address"`
	ExtraInfo  string     `gorm:"type:text" json:"extra_info"` // 额外信息(JSON)
	// 关联
	Card        *Card        `gorm:"foreignKey:CardID" json:"card,omitempty"`
	Application *Application `gorm:"foreignKey:AppID" json:"application,omitempty"`
}

func (DeviceBinding) TableName() string {
	return "device_bindings"
}

// Token 授权凭证
// 凭证与 (卡, 设备, 应用) 的关联存库，吊销即时生效
type Token struct {
	BaseModel
	TokenValue string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"token_value"`
	CardID     string     `gorm:"type:varchar(36);index;not null" json:"card_id"`
	AppID      string     `gorm:"type:varchar(36);index;not null" json:"app_id"`
	BindingID  string     `gorm:"type:varchar(36);index;not null" json:"binding_id"`
	DeviceID   string     `gorm:"type:varchar(128);not null" json:"device_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	RevokedAt  *time.Time `gorm:"index" json:"revoked_at"` // 吊销标记，不删除记录
	// 关联
	Card    *Card          `gorm:"foreignKey:CardID" json:"card,omitempty"`
	Binding *DeviceBinding `gorm:"foreignKey:BindingID" json:"binding,omitempty"`
}

func (Token) TableName() string {
	return "tokens"
}
