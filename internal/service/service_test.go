package service

import (
	"fmt"
	"strings"
	"testing"

	"card-server/internal/model"
	"card-server/internal/pkg/keygen"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 创建内存测试库
// 限制为单连接，内存库的并发事务随之串行化
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err, "连接测试数据库失败")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&model.Application{},
		&model.Agent{},
		&model.AgentTransaction{},
		&model.Card{},
		&model.DeviceBinding{},
		&model.Token{},
		&model.HeartbeatLog{},
	), "迁移测试数据库失败")

	return db
}

func seedApp(t *testing.T, db *gorm.DB, quota int) *model.Application {
	t.Helper()
	app := &model.Application{
		Name:              "测试应用",
		AppKey:            keygen.GenerateAppKey(),
		AppSecret:         keygen.GenerateAppSecret(),
		DeviceQuota:       quota,
		HeartbeatInterval: 60,
		IsActive:          true,
	}
	require.NoError(t, db.Create(app).Error)
	return app
}

func seedAgent(t *testing.T, db *gorm.DB, balance, discount float64) *model.Agent {
	t.Helper()
	agent := &model.Agent{
		Username: fmt.Sprintf("agent-%s", keygen.GenerateRandomString(8)),
		Balance:  balance,
		Discount: discount,
		IsActive: true,
	}
	require.NoError(t, agent.SetPassword("test123456"))
	require.NoError(t, db.Create(agent).Error)
	return agent
}

func seedCard(t *testing.T, db *gorm.DB, appID string, cardType model.CardType) *model.Card {
	t.Helper()
	card := &model.Card{
		CardKey:      keygen.GenerateCardKey(),
		AppID:        appID,
		Type:         cardType,
		DurationDays: model.CardDurationDays[cardType],
		Status:       model.CardStatusUnused,
	}
	require.NoError(t, db.Create(card).Error)
	return card
}

// newTestStack 组装全套服务
func newTestStack(db *gorm.DB) (*CardStore, *BindingTable, *TokenService, *Activator, *HeartbeatProcessor, *AgentLedger) {
	ledger := NewAgentLedger(db)
	cards := NewCardStore(db, ledger)
	bindings := NewBindingTable(db)
	tokens := NewTokenService(db)
	activator := NewActivator(db, cards, bindings, tokens)
	heartbeat := NewHeartbeatProcessor(db, tokens, bindings)
	return cards, bindings, tokens, activator, heartbeat, ledger
}
