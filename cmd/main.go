package main

import (
	"flag"
	"fmt"
	"os"

	"card-server/internal/config"
	"card-server/internal/handler"
	"card-server/internal/model"
	"card-server/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	migrate := flag.Bool("migrate", false, "仅执行数据库迁移后退出")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	if err := model.InitDB(&cfg.Database); err != nil {
		logger.Log.Fatal().Err(err).Msg("初始化数据库失败")
	}
	logger.Log.Info().Str("driver", cfg.Database.Driver).Msg("数据库连接成功")

	// 自动执行数据库迁移（确保表结构是最新的）
	if err := model.AutoMigrate(); err != nil {
		logger.Log.Fatal().Err(err).Msg("数据库迁移失败")
	}

	if *migrate {
		logger.Log.Info().Msg("数据库迁移完成")
		os.Exit(0)
	}

	// 创建 Gin 引擎
	r := gin.New()

	// 设置路由
	handler.SetupRouter(r)

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Log.Info().Str("addr", addr).Msg("服务器启动")
	if err := r.Run(addr); err != nil {
		logger.Log.Fatal().Err(err).Msg("服务器启动失败")
	}
}
