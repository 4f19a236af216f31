package repository

import (
	"context"
	"errors"
	"time"

	"news_bot/internal/telegram/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// MessageRepository 频道消息日志数据访问接口
type MessageRepository interface {
	// CreateMessage 创建消息记录（按 telegram_message_id + chat_id 去重）
	CreateMessage(ctx context.Context, message *models.Message) error

	// GetByTelegramID 根据 Telegram 消息 ID 和频道 ID 获取消息
	GetByTelegramID(ctx context.Context, telegramMessageID, chatID int64) (*models.Message, error)

	// UpdateMessageEdit 更新编辑后的正文
	UpdateMessageEdit(ctx context.Context, telegramMessageID, chatID int64, newText string, editedAt time.Time) error

	// ListBefore 返回 before 之前的消息，按消息 ID 倒序；before 为 0 表示从最新开始
	ListBefore(ctx context.Context, chatID, before int64, limit int64) ([]*models.Message, error)

	// CountByChat 频道已记录的消息数
	CountByChat(ctx context.Context, chatID int64) (int64, error)

	// EnsureIndexes 确保索引存在，ttlSeconds 为消息保留时长
	EnsureIndexes(ctx context.Context, ttlSeconds int32) error
}

// ChannelRepository 频道登记数据访问接口
type ChannelRepository interface {
	// Upsert 创建或更新频道
	Upsert(ctx context.Context, channel *models.Channel) error

	// GetByChatID 根据频道 ID 获取
	GetByChatID(ctx context.Context, chatID int64) (*models.Channel, error)

	// GetByUsername 根据公开用户名获取（不区分大小写，可带 @）
	GetByUsername(ctx context.Context, username string) (*models.Channel, error)

	// GetByInviteToken 根据私有频道邀请 token 获取
	GetByInviteToken(ctx context.Context, token string) (*models.Channel, error)

	// AddInviteToken 为频道关联邀请 token
	AddInviteToken(ctx context.Context, chatID int64, token string) error

	// UpdateBotStatus 更新 Bot 在频道中的状态
	UpdateBotStatus(ctx context.Context, chatID int64, status string) error

	// List 列出所有频道
	List(ctx context.Context) ([]*models.Channel, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}
