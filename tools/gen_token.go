package main

import (
	"flag"
	"fmt"
	"os"

	"card-server/internal/config"
	"card-server/internal/pkg/crypto"
)

// 离线签发管理接口的 Bearer Token。
// 用法: go run ./tools -config config.yaml -subject ops -hours 720
func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	subject := flag.String("subject", "admin", "令牌主体")
	role := flag.String("role", "admin", "令牌角色")
	hours := flag.Int("hours", 0, "有效期小时数，0 表示使用配置值")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	expireHours := cfg.JWT.ExpireHours
	if *hours > 0 {
		expireHours = *hours
	}

	token, err := crypto.GenerateToken(*subject, *role, cfg.JWT.Secret, expireHours)
	if err != nil {
		fmt.Fprintf(os.Stderr, "签发令牌失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
