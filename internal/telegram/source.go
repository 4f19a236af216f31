package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"news_bot/internal/locator"
	"news_bot/internal/logger"
	"news_bot/internal/telegram/models"
	"news_bot/internal/telegram/repository"
	"news_bot/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// botAPI Source 使用的 Bot API 子集，*bot.Bot 满足该接口
type botAPI interface {
	GetMe(ctx context.Context) (*botModels.User, error)
	GetChat(ctx context.Context, params *bot.GetChatParams) (*botModels.ChatFullInfo, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*botModels.ChatMember, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*botModels.File, error)
	FileDownloadLink(f *botModels.File) string
}

// Source 基于 Bot API 和消息日志的消息源
//
// Bot API 不提供频道历史，History 读取 Bot 监听期间记录的 channel_post；
// Bot 无法主动加入频道，Join 只校验 Bot 是否已是频道管理员或成员。
type Source struct {
	api      botAPI
	messages service.MessageService
	channels service.ChannelService
	client   *http.Client
	selfID   int64
}

// NewSource 创建消息源
func NewSource(api botAPI, messages service.MessageService, channels service.ChannelService, client *http.Client) *Source {
	// 下载超时由调用方 context 控制，client 不设超时
	if client == nil {
		client = &http.Client{}
	}
	return &Source{
		api:      api,
		messages: messages,
		channels: channels,
		client:   client,
	}
}

// Authenticate 校验 Bot Token 并记录 Bot 自身 ID
func (s *Source) Authenticate(ctx context.Context) (string, error) {
	me, err := s.api.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("get bot identity: %w", classifyError(err))
	}
	s.selfID = me.ID
	logger.L().Infof("Successfully connected as %s (id=%d)", me.Username, me.ID)
	return me.Username, nil
}

// Resolve 将 @handle 或邀请链接解析为频道
func (s *Source) Resolve(ctx context.Context, ref string) (locator.Entity, error) {
	channel, err := s.channels.Resolve(ctx, ref)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		if _, private := locator.ParseInvite(ref); private {
			return locator.Entity{}, fmt.Errorf("%w: invite %s is not bound to a known channel (send /bind <chat_id> <invite_link> to the bot)",
				locator.ErrChannelNotFound, ref)
		}
		channel, err = s.registerPublic(ctx, ref)
		if err != nil {
			return locator.Entity{}, err
		}
	default:
		return locator.Entity{}, &locator.TransientError{Err: err}
	}

	chat, err := s.api.GetChat(ctx, &bot.GetChatParams{ChatID: channel.ChatID})
	if err != nil {
		return locator.Entity{}, fmt.Errorf("get chat %d: %w", channel.ChatID, classifyError(err))
	}

	return locator.Entity{ID: chat.ID, Ref: ref, Title: chat.Title}, nil
}

// registerPublic 首次遇到公开频道时通过 GetChat 登记
func (s *Source) registerPublic(ctx context.Context, ref string) (*models.Channel, error) {
	chat, err := s.api.GetChat(ctx, &bot.GetChatParams{ChatID: ref})
	if err != nil {
		return nil, fmt.Errorf("get chat %s: %w", ref, classifyError(err))
	}

	channel := &models.Channel{
		ChatID:    chat.ID,
		Title:     chat.Title,
		Username:  chat.Username,
		BotStatus: models.ChannelStatusLeft,
	}
	if member, err := s.membership(ctx, chat.ID); err == nil {
		channel.BotStatus = statusOf(member)
	}

	if err := s.channels.Register(ctx, channel, ""); err != nil {
		logger.L().Warnf("Failed to register channel %s: %v", ref, err)
	}
	return channel, nil
}

// JoinByInvite 校验 Bot 已在邀请 token 对应的频道中
func (s *Source) JoinByInvite(ctx context.Context, token string) error {
	return s.verifyMembership(ctx, "https://t.me/+"+token)
}

// JoinByURL 校验 Bot 已在邀请链接对应的频道中
func (s *Source) JoinByURL(ctx context.Context, url string) error {
	return s.verifyMembership(ctx, url)
}

func (s *Source) verifyMembership(ctx context.Context, ref string) error {
	channel, err := s.channels.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: bot has not been added to %s", locator.ErrAccessDenied, ref)
		}
		return &locator.TransientError{Err: err}
	}

	member, err := s.membership(ctx, channel.ChatID)
	if err != nil {
		return err
	}

	status := statusOf(member)
	if status != models.ChannelStatusAdministrator && status != models.ChannelStatusMember {
		return fmt.Errorf("%w: bot status in %s is %s", locator.ErrAccessDenied, ref, status)
	}
	return nil
}

func (s *Source) membership(ctx context.Context, chatID int64) (*botModels.ChatMember, error) {
	if s.selfID == 0 {
		if _, err := s.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	member, err := s.api.GetChatMember(ctx, &bot.GetChatMemberParams{ChatID: chatID, UserID: s.selfID})
	if err != nil {
		return nil, fmt.Errorf("get chat member %d: %w", chatID, classifyError(err))
	}
	return member, nil
}

// History 从消息日志中读取 before 之前的一页
func (s *Source) History(ctx context.Context, entity locator.Entity, before int64, limit int) ([]locator.Message, error) {
	records, err := s.messages.ListBefore(ctx, entity.ID, before, limit)
	if err != nil {
		return nil, &locator.TransientError{Err: err}
	}

	page := make([]locator.Message, 0, len(records))
	for _, record := range records {
		page = append(page, toLocatorMessage(record))
	}
	return page, nil
}

// Download 通过 GetFile 获取下载地址并写入 w
func (s *Source) Download(ctx context.Context, entity locator.Entity, msg locator.Message, w io.Writer, progress locator.ProgressFunc) (int64, error) {
	if msg.FileRef == "" {
		return 0, locator.ErrNoAttachment
	}

	file, err := s.api.GetFile(ctx, &bot.GetFileParams{FileID: msg.FileRef})
	if err != nil {
		return 0, fmt.Errorf("get file for message %d: %w", msg.ID, classifyError(err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.api.FileDownloadLink(file), nil)
	if err != nil {
		return 0, fmt.Errorf("build download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		// 错误信息里带有含 token 的地址，不原样返回
		return 0, &locator.TransientError{Err: fmt.Errorf("download message %d: request failed", msg.ID)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download message %d: HTTP %d", msg.ID, resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return 0, &locator.TransientError{Err: err}
		}
		return 0, fmt.Errorf("%w: %v", locator.ErrRejected, err)
	}

	total := file.FileSize
	if total <= 0 {
		total = resp.ContentLength
	}
	if total <= 0 {
		total = msg.FileSize
	}

	pw := &progressWriter{w: w, total: total, progress: progress}
	n, err := io.Copy(pw, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, fmt.Errorf("download message %d: %w", msg.ID, err)
	}
	return n, nil
}

func toLocatorMessage(record *models.Message) locator.Message {
	return locator.Message{
		ID:       record.TelegramMessageID,
		FileName: record.MediaFileName,
		FileSize: record.MediaFileSize,
		FileRef:  record.MediaFileID,
		Text:     record.Body(),
		HasMedia: record.IsMediaMessage(),
		SentAt:   record.SentAt,
	}
}

func statusOf(member *botModels.ChatMember) string {
	if member == nil {
		return models.ChannelStatusLeft
	}
	switch member.Type {
	case botModels.ChatMemberTypeOwner, botModels.ChatMemberTypeAdministrator:
		return models.ChannelStatusAdministrator
	case botModels.ChatMemberTypeMember, botModels.ChatMemberTypeRestricted:
		return models.ChannelStatusMember
	case botModels.ChatMemberTypeBanned:
		return models.ChannelStatusKicked
	default:
		return models.ChannelStatusLeft
	}
}

// progressWriter 统计写入字节并回调进度
type progressWriter struct {
	w        io.Writer
	done     int64
	total    int64
	progress locator.ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.progress != nil {
		p.progress(p.done, p.total)
	}
	return n, err
}
