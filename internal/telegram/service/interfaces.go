package service

import (
	"context"
	"time"

	"news_bot/internal/telegram/models"
)

// MessageService 频道消息日志业务接口
type MessageService interface {
	// RecordChannelPost 记录频道消息
	RecordChannelPost(ctx context.Context, msg *ChannelPostInfo) error

	// HandleEditedChannelPost 记录频道消息编辑
	HandleEditedChannelPost(ctx context.Context, telegramMessageID, chatID int64, newText string, editedAt time.Time) error

	// ListBefore 按消息 ID 倒序分页读取
	ListBefore(ctx context.Context, chatID, before int64, limit int) ([]*models.Message, error)

	// CountByChat 频道已记录消息数
	CountByChat(ctx context.Context, chatID int64) (int64, error)
}

// ChannelService 频道登记业务接口
type ChannelService interface {
	// RecordMembership 记录 Bot 在频道中的状态变化
	RecordMembership(ctx context.Context, info *ChannelMembershipInfo) error

	// Resolve 根据 @handle 或邀请链接查找已登记频道
	Resolve(ctx context.Context, ref string) (*models.Channel, error)

	// Register 登记解析得到的频道，inviteRef 非空时关联邀请 token
	Register(ctx context.Context, channel *models.Channel, inviteRef string) error

	// ListChannels 列出所有已登记频道
	ListChannels(ctx context.Context) ([]*models.Channel, error)
}

// ChannelPostInfo 频道消息 DTO
type ChannelPostInfo struct {
	TelegramMessageID int64
	ChatID            int64
	ChatTitle         string
	ChatUsername      string
	MessageType       string
	Text              string
	Caption           string
	MediaFileID       string
	MediaFileUniqueID string
	MediaFileName     string
	MediaFileSize     int64
	MediaMimeType     string
	SentAt            time.Time
}

// ChannelMembershipInfo my_chat_member 更新 DTO
type ChannelMembershipInfo struct {
	ChatID     int64
	Title      string
	Username   string
	Status     string
	InviteLink string
}
