package bootstrap

import (
	"context"
	"fmt"

	"currency-rates-service/internal/application"
	"currency-rates-service/internal/config"
	"currency-rates-service/internal/infrastructure/logx"
	"currency-rates-service/internal/infrastructure/worker"

	"go.uber.org/zap"
)

// InitWorker builds the scheduled auto-update worker.
func InitWorker(ctx context.Context, cfg config.Config) (application.Worker, func(), error) {
	svc, cleanup, err := BuildService(ctx, cfg, NewMetrics())
	if err != nil {
		return nil, func() {}, err
	}
	w, err := worker.NewScheduler(svc, cfg.AutoUpdateSchedule, logx.L().With(zap.String("worker", "auto_update")))
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("init scheduler: %w", err)
	}
	w.RunOnStart = cfg.AutoUpdateOnStart
	return w, cleanup, nil
}
