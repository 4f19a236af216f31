package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"news_bot/internal/config"
	"news_bot/internal/logger"
	"news_bot/internal/telegram/repository"
	"news_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	"go.mongodb.org/mongo-driver/mongo"
)

// Config Telegram Bot 配置
type Config struct {
	Token         string  // Bot Token
	OwnerIDs      []int64 // Owner 用户 IDs
	ServerURL     string  // 自建 Bot API 服务地址，空则使用官方地址
	RetentionDays int     // 频道消息日志保留天数
	Debug         bool    // 是否开启调试模式
}

// Bot Telegram Bot 服务
type Bot struct {
	bot            *bot.Bot
	db             *mongo.Database
	ownerIDs       []int64
	retentionDays  int
	startTime      time.Time
	messageRepo    repository.MessageRepository
	channelRepo    repository.ChannelRepository
	messageService service.MessageService
	channelService service.ChannelService
	source         *Source
}

// New 创建 Telegram Bot 实例
func New(cfg Config, db *mongo.Database) (*Bot, error) {
	// 验证配置
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}
	if db == nil {
		return nil, fmt.Errorf("mongo database cannot be nil")
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}

	// 创建 repositories
	messageRepo := repository.NewMongoMessageRepository(db)
	channelRepo := repository.NewMongoChannelRepository(db)

	telegramBot := &Bot{
		db:             db,
		ownerIDs:       cfg.OwnerIDs,
		retentionDays:  cfg.RetentionDays,
		startTime:      time.Now(),
		messageRepo:    messageRepo,
		channelRepo:    channelRepo,
		messageService: service.NewMessageService(messageRepo),
		channelService: service.NewChannelService(channelRepo),
	}

	// 创建 bot 实例，只订阅需要的更新类型
	opts := []bot.Option{
		bot.WithAllowedUpdates(bot.AllowedUpdates{
			"message",
			"channel_post",
			"edited_channel_post",
			"my_chat_member",
		}),
		bot.WithSkipGetMe(),
	}
	if cfg.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.ServerURL))
	}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	telegramBot.bot = b
	telegramBot.source = NewSource(b, telegramBot.messageService, telegramBot.channelService, &http.Client{})

	// 注册 handlers
	telegramBot.registerHandlers()

	// 初始化数据库索引
	if err := telegramBot.ensureIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	logger.L().Info("Telegram bot initialized successfully")
	return telegramBot, nil
}

// InitFromConfig 从应用配置初始化 Telegram Bot
func InitFromConfig(cfg *config.Config, db *mongo.Database) (*Bot, error) {
	telegramCfg := Config{
		Token:         cfg.TelegramToken,
		OwnerIDs:      cfg.BotOwnerIDs,
		ServerURL:     cfg.TelegramServerURL,
		RetentionDays: cfg.MessageRetentionDays,
		Debug:         cfg.TelegramDebug,
	}
	return New(telegramCfg, db)
}

// Source 返回基于本 Bot 的消息源
func (b *Bot) Source() *Source {
	return b.source
}

// Start 启动 Bot（阻塞式，应在 goroutine 中运行）
func (b *Bot) Start(ctx context.Context) error {
	logger.L().Info("Starting Telegram bot...")
	b.bot.Start(ctx)
	logger.L().Info("Telegram bot stopped")
	return nil
}

// ensureIndexes 确保所有数据库索引存在
func (b *Bot) ensureIndexes(ctx context.Context) error {
	ttl := int32(time.Duration(b.retentionDays) * 24 * time.Hour / time.Second)
	if err := b.messageRepo.EnsureIndexes(ctx, ttl); err != nil {
		return fmt.Errorf("failed to ensure message indexes: %w", err)
	}
	logger.L().Debugf("Message indexes ensured (retention %d days)", b.retentionDays)

	if err := b.channelRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure channel indexes: %w", err)
	}
	logger.L().Debug("Channel indexes ensured")

	return nil
}

// isOwner 是否为配置的 Owner
func (b *Bot) isOwner(userID int64) bool {
	for _, id := range b.ownerIDs {
		if id == userID {
			return true
		}
	}
	return false
}
