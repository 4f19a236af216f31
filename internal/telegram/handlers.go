package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"news_bot/internal/locator"
	"news_bot/internal/logger"
	"news_bot/internal/telegram/models"
	"news_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// registerHandlers 注册所有处理器
func (b *Bot) registerHandlers() {
	// 频道消息日志
	b.bot.RegisterHandlerMatchFunc(isChannelPost, b.handleChannelPost)
	b.bot.RegisterHandlerMatchFunc(isEditedChannelPost, b.handleEditedChannelPost)
	b.bot.RegisterHandlerMatchFunc(isMyChatMember, b.handleMyChatMember)

	// 普通命令
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/ping", bot.MatchTypeExact, b.handlePing)

	// Owner 命令
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/channels", bot.MatchTypeExact,
		b.RequireOwner(b.handleListChannels))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/bind", bot.MatchTypePrefix,
		b.RequireOwner(b.handleBindInvite))

	logger.L().Debug("All handlers registered")
}

func isChannelPost(update *botModels.Update) bool {
	return update.ChannelPost != nil
}

func isEditedChannelPost(update *botModels.Update) bool {
	return update.EditedChannelPost != nil
}

func isMyChatMember(update *botModels.Update) bool {
	return update.MyChatMember != nil
}

// handleChannelPost 记录频道消息
func (b *Bot) handleChannelPost(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	info := channelPostInfo(update.ChannelPost)
	if err := b.messageService.RecordChannelPost(ctx, info); err != nil {
		return
	}

	// 第一次收到某频道消息时顺带登记频道
	if _, err := b.channelRepo.GetByChatID(ctx, info.ChatID); err != nil {
		_ = b.channelService.Register(ctx, &models.Channel{
			ChatID:    info.ChatID,
			Title:     info.ChatTitle,
			Username:  info.ChatUsername,
			BotStatus: models.ChannelStatusAdministrator,
		}, "")
	}
}

// handleEditedChannelPost 记录频道消息编辑
func (b *Bot) handleEditedChannelPost(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	msg := update.EditedChannelPost
	info := channelPostInfo(msg)

	body := info.Text
	if body == "" {
		body = info.Caption
	}

	editedAt := time.Unix(int64(msg.EditDate), 0)
	if err := b.messageService.HandleEditedChannelPost(ctx, info.TelegramMessageID, info.ChatID, body, editedAt); err != nil {
		// 编辑的是 Bot 加入之前的消息，按新消息记录
		_ = b.messageService.RecordChannelPost(ctx, info)
	}
}

// handleMyChatMember 记录 Bot 在频道中的状态变化
func (b *Bot) handleMyChatMember(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	change := update.MyChatMember
	if change.Chat.Type != botModels.ChatTypeChannel {
		return
	}

	info := &service.ChannelMembershipInfo{
		ChatID:   change.Chat.ID,
		Title:    change.Chat.Title,
		Username: change.Chat.Username,
		Status:   statusOf(&change.NewChatMember),
	}
	if change.InviteLink != nil {
		info.InviteLink = change.InviteLink.InviteLink
	}

	_ = b.channelService.RecordMembership(ctx, info)
}

// handleStart 处理 /start 命令
func (b *Bot) handleStart(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 你好, %s!\n\n"+
			"把 Bot 设为报纸频道管理员后，它会记录频道中的文件，每日下载任务从这些记录中查找当天的报纸。\n\n"+
			"可用命令:\n/ping - 运行状态\n/channels - 已登记频道（Owner）\n/bind &lt;chat_id&gt; &lt;invite_link&gt; - 关联私有频道邀请链接（Owner）\n\n"+
			"你的用户 ID: <code>%d</code>",
		html.EscapeString(update.Message.From.FirstName),
		update.Message.From.ID,
	)

	b.reply(ctx, update.Message, welcomeText)
}

// handlePing 处理 /ping 命令
func (b *Bot) handlePing(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil {
		return
	}
	b.reply(ctx, update.Message, b.buildPingMessage(ctx))
}

// handleListChannels 处理 /channels 命令
func (b *Bot) handleListChannels(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	channels, err := b.channelService.ListChannels(ctx)
	if err != nil {
		b.replyFail(ctx, update.Message, "查询失败")
		return
	}

	if len(channels) == 0 {
		b.reply(ctx, update.Message, "📝 暂无登记频道")
		return
	}

	var text strings.Builder
	text.WriteString("📚 已登记频道:\n\n")
	for i, channel := range channels {
		statusEmoji := "⚠️"
		if channel.IsAccessible() {
			statusEmoji = "✅"
		}

		count, err := b.messageService.CountByChat(ctx, channel.ChatID)
		if err != nil {
			count = -1
		}

		name := html.EscapeString(channel.Title)
		if channel.Username != "" {
			name += " (@" + html.EscapeString(channel.Username) + ")"
		}
		text.WriteString(fmt.Sprintf("%d. %s %s\n   ID: <code>%d</code> · 状态: %s · 记录: %d · 邀请: %d\n",
			i+1, statusEmoji, name, channel.ChatID, channel.BotStatus, count, len(channel.InviteTokens)))
	}

	b.reply(ctx, update.Message, text.String())
}

// handleBindInvite 处理 /bind 命令，将私有频道邀请链接关联到频道 ID
func (b *Bot) handleBindInvite(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	parts := strings.Fields(update.Message.Text)
	if len(parts) < 3 {
		b.replyFail(ctx, update.Message,
			"用法: /bind &lt;chat_id&gt; &lt;invite_link&gt;\n例如: /bind -1001234567890 https://t.me/+AbCdEf")
		return
	}

	chatID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.replyFail(ctx, update.Message, "无效的频道 ID")
		return
	}

	token, ok := locator.ParseInvite(parts[2])
	if !ok {
		b.replyFail(ctx, update.Message, "无效的邀请链接")
		return
	}

	if err := b.channelRepo.AddInviteToken(ctx, chatID, token); err != nil {
		logger.L().Warnf("Failed to bind invite: chat_id=%d, err=%v", chatID, err)
		b.replyFail(ctx, update.Message, "频道未登记，请先将 Bot 加入频道")
		return
	}

	b.replyOK(ctx, update.Message, fmt.Sprintf("已关联邀请链接到频道 %d", chatID))
}

// channelPostInfo 从频道消息中提取文本与附件信息
func channelPostInfo(msg *botModels.Message) *service.ChannelPostInfo {
	info := &service.ChannelPostInfo{
		TelegramMessageID: int64(msg.ID),
		ChatID:            msg.Chat.ID,
		ChatTitle:         msg.Chat.Title,
		ChatUsername:      msg.Chat.Username,
		MessageType:       models.MessageTypeText,
		Text:              msg.Text,
		Caption:           msg.Caption,
		SentAt:            time.Unix(int64(msg.Date), 0),
	}

	switch {
	case msg.Document != nil:
		info.MessageType = models.MessageTypeDocument
		info.MediaFileID = msg.Document.FileID
		info.MediaFileUniqueID = msg.Document.FileUniqueID
		info.MediaFileName = msg.Document.FileName
		info.MediaFileSize = msg.Document.FileSize
		info.MediaMimeType = msg.Document.MimeType
	case len(msg.Photo) > 0:
		// 取最大尺寸
		photo := msg.Photo[len(msg.Photo)-1]
		info.MessageType = models.MessageTypePhoto
		info.MediaFileID = photo.FileID
		info.MediaFileUniqueID = photo.FileUniqueID
		info.MediaFileSize = int64(photo.FileSize)
		info.MediaMimeType = "image/jpeg"
	case msg.Video != nil:
		info.MessageType = models.MessageTypeVideo
		info.MediaFileID = msg.Video.FileID
		info.MediaFileUniqueID = msg.Video.FileUniqueID
		info.MediaFileName = msg.Video.FileName
		info.MediaFileSize = msg.Video.FileSize
		info.MediaMimeType = msg.Video.MimeType
	case msg.Animation != nil:
		info.MessageType = models.MessageTypeAnimation
		info.MediaFileID = msg.Animation.FileID
		info.MediaFileUniqueID = msg.Animation.FileUniqueID
		info.MediaFileName = msg.Animation.FileName
		info.MediaFileSize = msg.Animation.FileSize
		info.MediaMimeType = msg.Animation.MimeType
	case msg.Audio != nil:
		info.MessageType = models.MessageTypeAudio
		info.MediaFileID = msg.Audio.FileID
		info.MediaFileUniqueID = msg.Audio.FileUniqueID
		info.MediaFileName = msg.Audio.FileName
		info.MediaFileSize = msg.Audio.FileSize
		info.MediaMimeType = msg.Audio.MimeType
	}

	return info
}
