// 手动提升管理员脚本
//
// 默认管理员只在空库首次启动时注入，已有环境要给其他账号
// 授予管理员权限时使用此脚本。
//
// 用法: go run scripts/grant_admin.go -email user@example.com
package main

import (
	"flag"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"log"
)

func main() {
	email := flag.String("email", "", "要提升为管理员的用户邮箱")
	flag.Parse()

	if *email == "" {
		log.Fatal("必须指定 -email 参数")
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	user, err := userRepo.FindByEmail(*email)
	if err != nil {
		log.Fatalf("用户不存在: %s", *email)
	}

	if user.Role == model.Admin {
		log.Printf("用户 %s 已经是管理员", *email)
		return
	}

	user.Role = model.Admin
	if err := userRepo.Update(user); err != nil {
		log.Fatalf("更新失败: %v", err)
	}
	log.Printf("已将 %s 提升为管理员", *email)
}
