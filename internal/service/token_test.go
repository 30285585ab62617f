package service

import (
	"sync"
	"testing"
	"time"

	"card-server/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// activatedFixture 激活一张月卡，返回应用、卡密和凭证
func activatedFixture(t *testing.T, db *gorm.DB, activator *Activator, quota int) (*model.Application, *model.Card, *model.Token) {
	t.Helper()
	app := seedApp(t, db, quota)
	card := seedCard(t, db, app.ID, model.CardTypeMonth)
	token, activated, err := activator.Activate(card.CardKey, "device-001", "10.0.0.1", "")
	require.NoError(t, err)
	return app, activated, token
}

func TestValidateHappyPath(t *testing.T) {
	db := newTestDB(t)
	_, _, tokens, activator, _, _ := newTestStack(db)
	app, card, token := activatedFixture(t, db, activator, 1)

	result, err := tokens.Validate(app.AppKey, token.TokenValue, "device-001")
	require.NoError(t, err)
	require.NotNil(t, result.App)
	require.NotNil(t, result.Card)
	require.NotNil(t, result.Binding)
	assert.Equal(t, card.ID, result.Card.ID)
	assert.Greater(t, result.Remaining, time.Duration(0))
}

func TestValidateUnknownApp(t *testing.T) {
	db := newTestDB(t)
	_, _, tokens, activator, _, _ := newTestStack(db)
	_, _, token := activatedFixture(t, db, activator, 1)

	_, err := tokens.Validate("no-such-app-key", token.TokenValue, "device-001")
	assert.ErrorIs(t, err, ErrAppNotFound)
}

func TestValidateDisabledApp(t *testing.T) {
	db := newTestDB(t)
	_, _, tokens, activator, _, _ := newTestStack(db)
	app, _, token := activatedFixture(t, db, activator, 1)

	require.NoError(t, db.Model(&model.Application{}).Where("id = ?", app.ID).Update("is_active", false).Error)

	_, err := tokens.Validate(app.AppKey, token.TokenValue, "device-001")
	assert.ErrorIs(t, err, ErrAppDisabled)
}

func TestValidateUnknownToken(t *testing.T) {
	db := newTestDB(t)
	_, _, tokens, activator, _, _ := newTestStack(db)
	app, _, _ := activatedFixture(t, db, activator, 1)

	_, err := tokens.Validate(app.AppKey, "not-a-real-token", "device-001")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestValidateAppMismatch(t *testing.T) {
	db := newTestDB(t)
	_, _, tokens, activator, _, _ := newTestStack(db)
	_, _, token := activatedFixture(t, db, activator, 1)

	// 凭证属于应用 A，却用应用 B 的 Key 校验
	other := seedApp(t, db, 1)
	_, err := tokens.Validate(other.AppKey, token.TokenValue, "device-001")
	assert.ErrorIs(t, err, ErrAppMismatch)
}

func TestValidateDeviceMismatch(t *testing.T) {
	db := newTestDB(t)
	_, _, tokens, activator, _, _ := newTestStack(db)
	app, _, token := activatedFixture(t, db, activator, 1)

	_, err := tokens.Validate(app.AppKey, token.TokenValue, "device-other")
	assert.ErrorIs(t, err, ErrDeviceMismatch)
}

func TestValidateExpiredCard(t *testing.T) {
	db := newTestDB(t)
	_, _, tokens, activator, _, _ := newTestStack(db)
	app, card, token := activatedFixture(t, db, activator, 1)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.Model(&model.Card{}).Where("id = ?", card.ID).Update("expires_at", past).Error)

	result, err := tokens.Validate(app.AppKey, token.TokenValue, "device-001")
	assert.ErrorIs(t, err, ErrCardExpired)
	// 过期结果仍带出到期时间供响应展示
	require.NotNil(t, result.ExpiresAt)
	assert.Zero(t, result.Remaining)
}

func TestIssueUnknownBinding(t *testing.T) {
	db := newTestDB(t)
	cards, _, tokens, _, _, _ := newTestStack(db)

	app := seedApp(t, db, 1)
	card := seedCard(t, db, app.ID, model.CardTypeDay)
	claimed, err := cards.Claim(card.CardKey, "device-001")
	require.NoError(t, err)

	ghost := &model.DeviceBinding{}
	ghost.ID = "no-such-binding"
	_, err = tokens.Issue(claimed, ghost)
	assert.ErrorIs(t, err, ErrBindingNotFound)
}

func TestIssueConcurrentSingleLiveToken(t *testing.T) {
	db := newTestDB(t)
	cards, bindings, tokens, _, _, _ := newTestStack(db)

	app := seedApp(t, db, 1)
	card := seedCard(t, db, app.ID, model.CardTypeMonth)
	claimed, err := cards.Claim(card.CardKey, "device-001")
	require.NoError(t, err)
	binding, err := bindings.Bind(claimed, "device-001", "10.0.0.1", "")
	require.NoError(t, err)

	// 并发签发串行化在绑定行锁上，结果只有一个有效凭证
	const workers = 6
	values := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := tokens.Issue(claimed, binding)
			if err == nil {
				values[i] = tok.TokenValue
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, values[0], values[i])
	}

	var count int64
	db.Model(&model.Token{}).Where("binding_id = ? AND revoked_at IS NULL", binding.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestIssueReturnsExistingLiveToken(t *testing.T) {
	db := newTestDB(t)
	cards, bindings, tokens, _, _, _ := newTestStack(db)

	app := seedApp(t, db, 1)
	card := seedCard(t, db, app.ID, model.CardTypeMonth)
	claimed, err := cards.Claim(card.CardKey, "device-001")
	require.NoError(t, err)
	binding, err := bindings.Bind(claimed, "device-001", "10.0.0.1", "")
	require.NoError(t, err)

	first, err := tokens.Issue(claimed, binding)
	require.NoError(t, err)
	second, err := tokens.Issue(claimed, binding)
	require.NoError(t, err)
	assert.Equal(t, first.TokenValue, second.TokenValue)

	var count int64
	db.Model(&model.Token{}).Where("card_id = ?", claimed.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}
