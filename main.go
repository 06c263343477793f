// @title WISE 进度聚合服务 API
// @version 1.0
// @description WISE学习平台的课程进度聚合后端。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"log"
	"wise_backend/internal/app"
	"wise_backend/internal/config"
	"wise_backend/pkg/configwatcher"
	"wise_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 配置热更新
	go configwatcher.WatchConfig("configs/config.yaml", func(newCfg *config.Config) {
		application.Config = newCfg
		logger.Log.Info("Config reloaded")
	})

	application.Run()
}
