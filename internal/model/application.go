package model

// Application 应用模型
type Application struct {
	BaseModel
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	AppKey      string `gorm:"type:varchar(64);uniqueIndex;not null" json:"app_key"`
	AppSecret   string `gorm:"type:varchar(128);not null" json:"-"`
	Description string `gorm:"type:text" json:"description"`
	// 授权配置
	DeviceQuota       int  `gorm:"default:1" json:"device_quota"`        // 单张卡最大绑定设备数
	HeartbeatInterval int  `gorm:"default:60" json:"heartbeat_interval"` // 心跳间隔(秒)
	IsActive          bool `gorm:"default:true" json:"is_active"`
	// 关联
	Cards []Card `gorm:"foreignKey:AppID" json:"cards,omitempty"`
}

func (Application) TableName() string {
	return "applications"
}

const (
	// MinDeviceQuota 设备配额下限
	MinDeviceQuota = 1
	// MinHeartbeatInterval 心跳间隔下限(秒)
	MinHeartbeatInterval = 10
)
