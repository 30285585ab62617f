package model

// HeartbeatStatus 心跳结果状态
type HeartbeatStatus string

const (
	HeartbeatStatusSuccess HeartbeatStatus = "success"
	HeartbeatStatusExpired HeartbeatStatus = "expired"
	HeartbeatStatusInvalid HeartbeatStatus = "invalid"
)

// HeartbeatLog 心跳审计记录
// 只追加不修改，设备标识脱敏存储
type HeartbeatLog struct {
	BaseModel
	AppID     string          `gorm:"type:varchar(36);index" json:"app_id"` // 未知应用时为空
	DeviceID  string          `gorm:"type:varchar(128);index" json:"device_id"`
	IPAddress string          `gorm:"type:varchar(45)" json:"ip_address"`
	Status    HeartbeatStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Message   string          `gorm:"type:varchar(255)" json:"message"`
}

func (HeartbeatLog) TableName() string {
	return "heartbeat_logs"
}
