package app

import (
	"context"
	"time"

	"news_bot/internal/coordinator"
	"news_bot/internal/logger"
)

// Listen 运行 Bot 记录频道消息，直到 ctx 取消
func (a *App) Listen(ctx context.Context) error {
	return a.TelegramBot.Start(ctx)
}

// Serve 运行 Bot，并在每天固定时间执行下载与后续处理
//
// 报纸不齐时按间隔重试下载；成功或最后一次尝试后才执行后续阶段，避免重复发送。
func (a *App) Serve(ctx context.Context) error {
	hour, minute, err := a.Config.Schedule.Clock()
	if err != nil {
		return err
	}

	maxRetries := a.Config.Schedule.MaxRetries
	scheduler := coordinator.NewScheduler(func(ctx context.Context, attempt int) bool {
		return a.scheduledRun(ctx, attempt, maxRetries)
	}, hour, minute, a.Config.Location).WithRetries(maxRetries, a.Config.Schedule.RetryInterval)

	scheduler.Start()
	defer scheduler.Stop()

	return a.Listen(ctx)
}

func (a *App) scheduledRun(ctx context.Context, attempt, maxRetries int) bool {
	now := time.Now()
	status, err := a.Download(ctx, now, attempt)
	if err != nil {
		logger.L().Errorf("Scheduled download failed to start: %v", err)
		return false
	}

	success := status.Success()
	if !success && attempt < maxRetries {
		return false
	}

	if err := NewPipeline(a.Config, now, attempt).RunAll(ctx); err != nil {
		logger.L().Errorf("Scheduled pipeline aborted: %v", err)
	}
	return success
}
