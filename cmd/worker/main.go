package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"currency-rates-service/internal/bootstrap"
	"currency-rates-service/internal/config"
	"currency-rates-service/internal/infrastructure/logx"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	log := logx.L()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	logx.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, cleanup, err := bootstrap.InitWorker(ctx, cfg)
	if err != nil {
		log.Fatal("init worker", zap.Error(err))
	}
	defer cleanup()

	w.Start(ctx)
}
