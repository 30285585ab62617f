package service

import "errors"

// 引擎错误，校验与状态错误一律同步返回给调用方
// 除存储层瞬时故障外均为终态，不应盲目重试
var (
	ErrCardNotFound        = errors.New("card not found")
	ErrCardAlreadyUsed     = errors.New("card already used")
	ErrCardInUse           = errors.New("card in use")
	ErrCardExpired         = errors.New("card expired")
	ErrAppNotFound         = errors.New("application not found")
	ErrAppDisabled         = errors.New("application disabled")
	ErrAppMismatch         = errors.New("application mismatch")
	ErrDeviceMismatch      = errors.New("device mismatch")
	ErrDeviceQuotaExceeded = errors.New("device quota exceeded")
	ErrBindingNotFound     = errors.New("binding not found")
	ErrTokenNotFound       = errors.New("token not found")
	ErrAgentNotFound       = errors.New("agent not found")
	ErrAgentDisabled       = errors.New("agent disabled")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// errMessages 面向终端用户的提示语
var errMessages = map[error]string{
	ErrCardNotFound:        "卡密不存在",
	ErrCardAlreadyUsed:     "卡密已被使用",
	ErrCardInUse:           "已使用的卡密无法删除",
	ErrCardExpired:         "授权已过期",
	ErrAppNotFound:         "应用不存在",
	ErrAppDisabled:         "应用已禁用",
	ErrAppMismatch:         "应用不匹配",
	ErrDeviceMismatch:      "设备不匹配",
	ErrDeviceQuotaExceeded: "设备数量已达上限",
	ErrBindingNotFound:     "设备未绑定",
	ErrTokenNotFound:       "设备未授权",
	ErrAgentNotFound:       "代理不存在",
	ErrAgentDisabled:       "代理已被禁用",
	ErrInsufficientBalance: "余额不足",
}

// Message 返回错误对应的用户提示语
func Message(err error) string {
	for sentinel, msg := range errMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "服务器内部错误"
}
