package service

import (
	"context"
	"fmt"
	"time"

	"news_bot/internal/logger"
	"news_bot/internal/telegram/models"
	"news_bot/internal/telegram/repository"
)

// MessageServiceImpl 消息服务实现
type MessageServiceImpl struct {
	messageRepo repository.MessageRepository
}

// NewMessageService 创建消息服务
func NewMessageService(messageRepo repository.MessageRepository) MessageService {
	return &MessageServiceImpl{
		messageRepo: messageRepo,
	}
}

// RecordChannelPost 记录频道消息
func (s *MessageServiceImpl) RecordChannelPost(ctx context.Context, msg *ChannelPostInfo) error {
	message := &models.Message{
		TelegramMessageID: msg.TelegramMessageID,
		ChatID:            msg.ChatID,
		MessageType:       msg.MessageType,
		Text:              msg.Text,
		Caption:           msg.Caption,
		MediaFileID:       msg.MediaFileID,
		MediaFileUniqueID: msg.MediaFileUniqueID,
		MediaFileName:     msg.MediaFileName,
		MediaFileSize:     msg.MediaFileSize,
		MediaMimeType:     msg.MediaMimeType,
		SentAt:            msg.SentAt,
	}

	if err := s.messageRepo.CreateMessage(ctx, message); err != nil {
		logger.L().Errorf("Failed to create channel post: chat_id=%d, message_id=%d, error=%v",
			msg.ChatID, msg.TelegramMessageID, err)
		return fmt.Errorf("failed to record channel post: %w", err)
	}

	logger.L().Infof("Channel post recorded: chat_id=%d, message_id=%d, type=%s, file=%q",
		msg.ChatID, msg.TelegramMessageID, msg.MessageType, msg.MediaFileName)
	return nil
}

// HandleEditedChannelPost 处理频道消息编辑
func (s *MessageServiceImpl) HandleEditedChannelPost(ctx context.Context, telegramMessageID, chatID int64, newText string, editedAt time.Time) error {
	if err := s.messageRepo.UpdateMessageEdit(ctx, telegramMessageID, chatID, newText, editedAt); err != nil {
		logger.L().Errorf("Failed to update edited channel post: chat_id=%d, message_id=%d, error=%v",
			chatID, telegramMessageID, err)
		return fmt.Errorf("failed to record channel post edit: %w", err)
	}

	logger.L().Infof("Channel post edit recorded: chat_id=%d, message_id=%d", chatID, telegramMessageID)
	return nil
}

// ListBefore 分页读取频道消息
func (s *MessageServiceImpl) ListBefore(ctx context.Context, chatID, before int64, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	messages, err := s.messageRepo.ListBefore(ctx, chatID, before, int64(limit))
	if err != nil {
		logger.L().Errorf("Failed to get channel history: chat_id=%d, before=%d, error=%v", chatID, before, err)
		return nil, fmt.Errorf("failed to get message history: %w", err)
	}

	return messages, nil
}

// CountByChat 统计频道消息数
func (s *MessageServiceImpl) CountByChat(ctx context.Context, chatID int64) (int64, error) {
	return s.messageRepo.CountByChat(ctx, chatID)
}
