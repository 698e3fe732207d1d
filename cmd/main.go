package main

import (
	"flag"
	"log"

	api "novaflow/cmd/novaflow"
	"novaflow/conf"
	"novaflow/internal/middleware"
	"novaflow/pkg/logger"
)

// 启动服务（监听 tradingview webhook）

/*
测试

BODY='{"action":"buy","price":50000,"stop_loss":49000}'

curl -X POST http://localhost:8000/webhook \
  -H "Content-Type: application/json" \
  -d "$BODY"
*/

func main() {
	configPath := flag.String("config", "conf/config.yaml", "config file path")
	flag.Parse()

	// 加载配置文件
	err := conf.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appCfg := conf.AppConfig
	logger.InitLogger(&appCfg.Log, appCfg.AppName)
	defer logger.Sync()

	app, err := api.InitApp(&appCfg)
	if err != nil {
		logger.Fatalf("init app failed: %v", err)
	}

	// 创建并启动服务
	srv := api.NewServer(&appCfg)
	srv.RegisterOnShutdown(app.Shutdown)

	if err := srv.Run(middleware.NewMiddleware(), app.Router); err != nil {
		logger.Errorf("server exited with error: %v", err)
	}
}
