package app

import (
	"context"
	"fmt"
	"time"

	"news_bot/internal/catalog"
	"news_bot/internal/config"
	"news_bot/internal/coordinator"
	"news_bot/internal/download"
	"news_bot/internal/locator"
	"news_bot/internal/logger"
	"news_bot/internal/mongo"
	"news_bot/internal/telegram"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	Config      *config.Config
	Catalog     *catalog.Catalog
	MongoDB     *mongo.Client
	TelegramBot *telegram.Bot
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会返回错误
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	// 频道清单在连接任何外部服务之前校验
	cat, err := catalog.Load(cfg.ChannelsFile, time.Now().In(cfg.Location))
	if err != nil {
		return nil, err
	}
	logger.L().Infof("Loaded %d channels from %s (%d newspapers expected)",
		len(cat.Channels), cfg.ChannelsFile, cat.ExpectedNewspapers())

	app := &App{Config: cfg, Catalog: cat}

	mongoClient, err := mongo.InitFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init MongoDB failed: %w", err)
	}
	app.MongoDB = mongoClient
	logger.L().Info("MongoDB initialized successfully")

	app.TelegramBot, err = telegram.InitFromConfig(cfg, mongoClient.Database())
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init Telegram bot failed: %w", err)
	}

	return app, nil
}

// Download 执行一次下载：登录、逐个频道查找并下载、写状态文件、通知 Owner
//
// 返回的错误只表示无法开始（凭证无效、输出目录不可写）；
// 报纸是否齐全由 RunStatus.Success 判断。
func (a *App) Download(ctx context.Context, now time.Time, retryCount int) (*coordinator.RunStatus, error) {
	source := a.TelegramBot.Source()
	if _, err := source.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	outDir := a.Config.OutputDir(now)
	run := a.Config.Run

	scanner := locator.NewScanner(source,
		locator.WithBudget(run.MessageBudget),
		locator.WithPageSize(run.PageSize),
		locator.WithPacer(locator.NewPacer(run.Pacing)),
		locator.WithMinDateFragments(run.LooseMinFragments),
	)
	fetcher := download.NewOrchestrator(source, run.DownloadTimeout)

	c := coordinator.New(source, scanner, fetcher, coordinator.Options{
		OutputDir:      outDir,
		Now:            now.In(a.Config.Location),
		ExpectedCount:  run.ExpectedNewspapers,
		RetryCount:     retryCount,
		ChannelTimeout: run.ChannelTimeout,
		JoinSettle:     locator.DefaultJoinSettle,
	})

	status := c.Run(ctx, a.Catalog.Channels)

	path, err := coordinator.WriteStatus(outDir, status)
	if err != nil {
		logger.L().Errorf("Failed to write status file: %v", err)
	} else {
		logger.L().Infof("Status written to %s", path)
	}

	// 通知不受运行 context 取消影响
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	a.TelegramBot.SendRunReport(notifyCtx, status)

	return status, nil
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
