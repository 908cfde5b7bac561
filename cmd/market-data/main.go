package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"quotebridge.com/internal/quotes/app"
)

func main() {
	configName := flag.String("config", "market-data", "config file name, looked up in ./config and .")
	flag.Parse()

	// 1. 支持 Ctrl+C / kubernetes 停止信号的 context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化 App
	mdApp, err := app.New(ctx, *configName)
	if err != nil {
		log.Fatalf("init market-data error: %v", err)
	}
	defer mdApp.Close()

	// 3. 连接依赖 + 轮询 + HTTP，阻塞到退出信号
	if err := mdApp.Run(ctx); err != nil {
		log.Printf("market-data run error: %v", err)
	}
}
