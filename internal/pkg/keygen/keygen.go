package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
)

// 卡密字符集，去掉易混淆的 I/O/0/1
const cardKeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCardKey 生成卡密
// 格式: XXXX-XXXX-XXXX-XXXX
func GenerateCardKey() string {
	parts := make([]string, 4)
	for i := range parts {
		var sb strings.Builder
		for j := 0; j < 4; j++ {
			n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(cardKeyAlphabet))))
			sb.WriteByte(cardKeyAlphabet[n.Int64()])
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, "-")
}

// NormalizeCardKey 标准化卡密格式
// 去空格和连字符后按 4 位重新分组
func NormalizeCardKey(key string) string {
	raw := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(key))
	var groups []string
	for i := 0; i < len(raw); i += 4 {
		end := i + 4
		if end > len(raw) {
			end = len(raw)
		}
		groups = append(groups, raw[i:end])
	}
	return strings.Join(groups, "-")
}

// GenerateRandomString 生成随机十六进制字符串
func GenerateRandomString(length int) string {
	bytes := make([]byte, length/2+1)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)[:length]
}

// GenerateAppKey 生成应用 Key
func GenerateAppKey() string {
	return GenerateRandomString(32)
}

// GenerateAppSecret 生成应用 Secret
func GenerateAppSecret() string {
	return GenerateRandomString(64)
}

// GenerateToken 生成授权凭证
func GenerateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// MaskCardKey 隐藏卡密中间部分
func MaskCardKey(key string) string {
	if len(key) < 8 {
		return key
	}
	return key[0:4] + "-****-****-" + key[len(key)-4:]
}

// MaskDeviceID 隐藏设备标识中间部分
// 心跳日志仅保留脱敏后的设备标识
func MaskDeviceID(deviceID string) string {
	if len(deviceID) <= 8 {
		return deviceID
	}
	return deviceID[0:4] + "***" + deviceID[len(deviceID)-4:]
}
