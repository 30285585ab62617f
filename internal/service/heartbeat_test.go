package service

import (
	"testing"
	"time"

	"card-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatSuccess(t *testing.T) {
	db := newTestDB(t)
	_, _, _, activator, heartbeat, _ := newTestStack(db)
	app, _, token := activatedFixture(t, db, activator, 1)

	outcome := heartbeat.Check(app.AppKey, token.TokenValue, "device-001", "10.0.0.9")
	assert.True(t, outcome.Authorized)
	assert.Greater(t, outcome.RemainingSeconds, int64(0))
	require.NotNil(t, outcome.ExpiresAt)
	assert.False(t, outcome.ServerTime.IsZero())

	var entry model.HeartbeatLog
	require.NoError(t, db.Order("created_at DESC").First(&entry).Error)
	assert.Equal(t, model.HeartbeatStatusSuccess, entry.Status)
	assert.Equal(t, app.ID, entry.AppID)
	assert.Equal(t, "10.0.0.9", entry.IPAddress)
	// 设备标识脱敏存储
	assert.NotEqual(t, "device-001", entry.DeviceID)
	assert.Contains(t, entry.DeviceID, "***")

	// 成功心跳刷新设备活跃时间和来源地址
	var binding model.DeviceBinding
	require.NoError(t, db.Where("device_id = ?", "device-001").First(&binding).Error)
	require.NotNil(t, binding.LastSeenAt)
	assert.WithinDuration(t, time.Now(), *binding.LastSeenAt, time.Minute)
	assert.Equal(t, "10.0.0.9", binding.IPAddress)
}

func TestHeartbeatInvalidToken(t *testing.T) {
	db := newTestDB(t)
	_, _, _, activator, heartbeat, _ := newTestStack(db)
	app, _, _ := activatedFixture(t, db, activator, 1)

	outcome := heartbeat.Check(app.AppKey, "not-a-real-token", "device-001", "10.0.0.1")
	assert.False(t, outcome.Authorized)
	assert.NotEmpty(t, outcome.Message)

	var entry model.HeartbeatLog
	require.NoError(t, db.Order("created_at DESC").First(&entry).Error)
	assert.Equal(t, model.HeartbeatStatusInvalid, entry.Status)
	assert.Equal(t, app.ID, entry.AppID)
}

func TestHeartbeatExpiredCard(t *testing.T) {
	db := newTestDB(t)
	_, _, _, activator, heartbeat, _ := newTestStack(db)
	app, card, token := activatedFixture(t, db, activator, 1)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&model.Card{}).Where("id = ?", card.ID).Update("expires_at", past).Error)

	outcome := heartbeat.Check(app.AppKey, token.TokenValue, "device-001", "10.0.0.1")
	assert.False(t, outcome.Authorized)
	// 过期响应带出到期时间
	require.NotNil(t, outcome.ExpiresAt)

	var entry model.HeartbeatLog
	require.NoError(t, db.Order("created_at DESC").First(&entry).Error)
	assert.Equal(t, model.HeartbeatStatusExpired, entry.Status)
}

func TestHeartbeatDisabledApp(t *testing.T) {
	db := newTestDB(t)
	_, _, _, activator, heartbeat, _ := newTestStack(db)
	app, _, token := activatedFixture(t, db, activator, 1)

	require.NoError(t, db.Model(&model.Application{}).Where("id = ?", app.ID).Update("is_active", false).Error)

	outcome := heartbeat.Check(app.AppKey, token.TokenValue, "device-001", "10.0.0.1")
	assert.False(t, outcome.Authorized)

	var entry model.HeartbeatLog
	require.NoError(t, db.Order("created_at DESC").First(&entry).Error)
	assert.Equal(t, model.HeartbeatStatusInvalid, entry.Status)
}

func TestHeartbeatUnknownAppStillLogged(t *testing.T) {
	db := newTestDB(t)
	_, _, _, _, heartbeat, _ := newTestStack(db)

	outcome := heartbeat.Check("no-such-app-key", "whatever", "device-001", "10.0.0.1")
	assert.False(t, outcome.Authorized)

	// 应用无法解析时记录仍要落库，AppID 为空
	var entry model.HeartbeatLog
	require.NoError(t, db.Order("created_at DESC").First(&entry).Error)
	assert.Equal(t, model.HeartbeatStatusInvalid, entry.Status)
	assert.Empty(t, entry.AppID)
}

func TestStatusIsReadOnly(t *testing.T) {
	db := newTestDB(t)
	_, _, _, activator, heartbeat, _ := newTestStack(db)
	app, _, token := activatedFixture(t, db, activator, 1)

	var before model.DeviceBinding
	require.NoError(t, db.Where("device_id = ?", "device-001").First(&before).Error)

	snapshot := heartbeat.Status(app.AppKey, token.TokenValue, "device-001")
	assert.True(t, snapshot.Authorized)
	assert.Greater(t, snapshot.RemainingSeconds, int64(0))
	assert.Equal(t, 30, snapshot.RemainingDays)
	require.NotNil(t, snapshot.LastHeartbeat)

	// 状态查询不产生审计记录，也不刷新活跃时间
	var logCount int64
	db.Model(&model.HeartbeatLog{}).Count(&logCount)
	assert.Zero(t, logCount)

	var after model.DeviceBinding
	require.NoError(t, db.Where("device_id = ?", "device-001").First(&after).Error)
	require.NotNil(t, after.LastSeenAt)
	assert.Equal(t, before.LastSeenAt.Unix(), after.LastSeenAt.Unix())
}

func TestStatusInvalidToken(t *testing.T) {
	db := newTestDB(t)
	_, _, _, activator, heartbeat, _ := newTestStack(db)
	app, _, _ := activatedFixture(t, db, activator, 1)

	snapshot := heartbeat.Status(app.AppKey, "not-a-real-token", "device-001")
	assert.False(t, snapshot.Authorized)
	assert.NotEmpty(t, snapshot.Message)

	var logCount int64
	db.Model(&model.HeartbeatLog{}).Count(&logCount)
	assert.Zero(t, logCount)
}
