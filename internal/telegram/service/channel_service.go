package service

import (
	"context"
	"fmt"
	"strings"

	"news_bot/internal/locator"
	"news_bot/internal/logger"
	"news_bot/internal/telegram/models"
	"news_bot/internal/telegram/repository"
)

// ChannelServiceImpl 频道登记服务实现
type ChannelServiceImpl struct {
	channelRepo repository.ChannelRepository
}

// NewChannelService 创建频道服务
func NewChannelService(channelRepo repository.ChannelRepository) ChannelService {
	return &ChannelServiceImpl{channelRepo: channelRepo}
}

// RecordMembership 记录 Bot 被加入、提升或移出频道
func (s *ChannelServiceImpl) RecordMembership(ctx context.Context, info *ChannelMembershipInfo) error {
	channel := &models.Channel{
		ChatID:    info.ChatID,
		Title:     info.Title,
		Username:  info.Username,
		BotStatus: info.Status,
	}
	if token, ok := locator.ParseInvite(info.InviteLink); ok {
		channel.InviteTokens = []string{token}
	}

	if err := s.channelRepo.Upsert(ctx, channel); err != nil {
		logger.L().Errorf("Failed to record channel membership: chat_id=%d, status=%s, error=%v",
			info.ChatID, info.Status, err)
		return fmt.Errorf("failed to record channel membership: %w", err)
	}

	logger.L().Infof("Channel membership recorded: chat_id=%d, title=%q, status=%s",
		info.ChatID, info.Title, info.Status)
	return nil
}

// Resolve 查找已登记频道
func (s *ChannelServiceImpl) Resolve(ctx context.Context, ref string) (*models.Channel, error) {
	ref = strings.TrimSpace(ref)
	if token, ok := locator.ParseInvite(ref); ok {
		return s.channelRepo.GetByInviteToken(ctx, token)
	}
	if strings.HasPrefix(ref, "@") {
		return s.channelRepo.GetByUsername(ctx, ref)
	}
	return nil, fmt.Errorf("unsupported channel reference %q: %w", ref, repository.ErrNotFound)
}

// Register 登记频道
func (s *ChannelServiceImpl) Register(ctx context.Context, channel *models.Channel, inviteRef string) error {
	if token, ok := locator.ParseInvite(inviteRef); ok {
		channel.InviteTokens = append(channel.InviteTokens, token)
	}
	if err := s.channelRepo.Upsert(ctx, channel); err != nil {
		return fmt.Errorf("failed to register channel: %w", err)
	}
	return nil
}

// ListChannels 列出所有已登记频道
func (s *ChannelServiceImpl) ListChannels(ctx context.Context) ([]*models.Channel, error) {
	return s.channelRepo.List(ctx)
}
