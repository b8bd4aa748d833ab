package worker

import (
	"context"
	"fmt"
	"time"

	"currency-rates-service/internal/application"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var _ application.Worker = (*Scheduler)(nil)

// AutoUpdater is the part of the rates service the scheduler drives.
type AutoUpdater interface {
	UpdateAllFromSource(ctx context.Context) (application.AutoUpdateResult, error)
}

// Scheduler runs auto-updates on a cron schedule until its context is canceled.
// A run still in progress when the next one is due is skipped.
type Scheduler struct {
	Updater    AutoUpdater
	RunOnStart bool
	// Timeout bounds a single run; zero means no bound beyond the worker context.
	Timeout time.Duration
	Log     *zap.Logger

	schedule cron.Schedule
	expr     string
}

// NewScheduler validates expr ("@every 30m", "*/15 * * * *", ...) and returns a scheduler for it.
func NewScheduler(updater AutoUpdater, expr string, log *zap.Logger) (*Scheduler, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid auto-update schedule %q: %w", expr, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{Updater: updater, Log: log, schedule: sched, expr: expr}, nil
}

func (w *Scheduler) Start(ctx context.Context) {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	clog := cronLogger{log.Sugar()}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	c.Schedule(w.schedule, cron.FuncJob(func() { w.runOnce(ctx, log) }))

	log.Info("scheduler_started", zap.String("schedule", w.expr), zap.Bool("run_on_start", w.RunOnStart))
	if w.RunOnStart {
		w.runOnce(ctx, log)
	}
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("scheduler_stopped")
}

func (w *Scheduler) runOnce(ctx context.Context, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := w.Updater.UpdateAllFromSource(ctx)
	fields := []zap.Field{
		zap.Bool("success", res.Success),
		zap.String("source", res.Source),
		zap.Int("updated", res.Updated),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		log.Warn("auto_update_failed", append(fields, zap.String("message", res.Message), zap.Error(err))...)
		return
	}
	log.Info("auto_update_done", fields...)
}

// cronLogger adapts zap to cron's logr-style logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}
