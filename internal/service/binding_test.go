package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"card-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindRespectsQuota(t *testing.T) {
	db := newTestDB(t)
	cards, bindings, _, _, _, _ := newTestStack(db)

	app := seedApp(t, db, 2)
	card := seedCard(t, db, app.ID, model.CardTypeMonth)
	claimed, err := cards.Claim(card.CardKey, "device-001")
	require.NoError(t, err)

	first, err := bindings.Bind(claimed, "device-001", "10.0.0.1", "")
	require.NoError(t, err)
	_, err = bindings.Bind(claimed, "device-002", "10.0.0.2", "")
	require.NoError(t, err)

	// 配额用尽
	_, err = bindings.Bind(claimed, "device-003", "10.0.0.3", "")
	assert.ErrorIs(t, err, ErrDeviceQuotaExceeded)

	// 已绑定设备重复绑定幂等返回既有记录
	again, err := bindings.Bind(claimed, "device-001", "10.0.0.1", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	count, err := bindings.Count(claimed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestBindConcurrentNeverExceedsQuota(t *testing.T) {
	db := newTestDB(t)
	cards, bindings, _, _, _, _ := newTestStack(db)

	app := seedApp(t, db, 3)
	card := seedCard(t, db, app.ID, model.CardTypeMonth)
	claimed, err := cards.Claim(card.CardKey, "device-000")
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = bindings.Bind(claimed, fmt.Sprintf("device-%03d", i), "10.0.0.1", "")
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
		} else {
			require.True(t, errors.Is(err, ErrDeviceQuotaExceeded), "意外错误: %v", err)
		}
	}
	assert.Equal(t, 3, success)

	count, err := bindings.Count(claimed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestUnbindRevokesTokens(t *testing.T) {
	db := newTestDB(t)
	_, bindings, tokens, activator, _, _ := newTestStack(db)

	app := seedApp(t, db, 1)
	card := seedCard(t, db, app.ID, model.CardTypeMonth)

	token, _, err := activator.Activate(card.CardKey, "device-001", "10.0.0.1", "")
	require.NoError(t, err)

	var claimed model.Card
	require.NoError(t, db.First(&claimed, "id = ?", card.ID).Error)

	require.NoError(t, bindings.Unbind(claimed.ID, "device-001"))

	// 凭证吊销标记，记录保留
	var revoked model.Token
	require.NoError(t, db.First(&revoked, "id = ?", token.ID).Error)
	assert.NotNil(t, revoked.RevokedAt)

	count, err := bindings.Count(claimed.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = tokens.Validate(app.AppKey, token.TokenValue, "device-001")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// 解绑后设备可重新激活，签发新凭证
	newToken, _, err := activator.Activate(card.CardKey, "device-001", "10.0.0.1", "")
	require.NoError(t, err)
	assert.NotEqual(t, token.TokenValue, newToken.TokenValue)
}

func TestBindUnknownCard(t *testing.T) {
	db := newTestDB(t)
	_, bindings, _, _, _, _ := newTestStack(db)

	ghost := &model.Card{}
	ghost.ID = "no-such-card"
	_, err := bindings.Bind(ghost, "device-001", "10.0.0.1", "")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestBindStoreErrorNotMasked(t *testing.T) {
	db := newTestDB(t)
	cards, bindings, _, _, _, _ := newTestStack(db)

	app := seedApp(t, db, 1)
	card := seedCard(t, db, app.ID, model.CardTypeDay)
	claimed, err := cards.Claim(card.CardKey, "device-001")
	require.NoError(t, err)

	// 存储层故障属于瞬时错误，不得伪装成卡密不存在等终态错误
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = bindings.Bind(claimed, "device-002", "10.0.0.1", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCardNotFound)
	assert.NotErrorIs(t, err, ErrAppDisabled)
	assert.NotErrorIs(t, err, ErrDeviceQuotaExceeded)
}

func TestUnbindUnknownDevice(t *testing.T) {
	db := newTestDB(t)
	_, bindings, _, _, _, _ := newTestStack(db)

	app := seedApp(t, db, 1)
	card := seedCard(t, db, app.ID, model.CardTypeDay)

	assert.ErrorIs(t, bindings.Unbind(card.ID, "device-001"), ErrBindingNotFound)
}
