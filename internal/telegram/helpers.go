package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"news_bot/internal/logger"
)

const (
	prefixOK   = "✅ "
	prefixFail = "❌ "
)

// outgoing 一条待发送的 HTML 消息
type outgoing struct {
	chatID  int64
	text    string
	replyTo int  // 被回复的命令消息，0 表示不引用
	silent  bool // 静默推送
}

func (o outgoing) params() *bot.SendMessageParams {
	params := &bot.SendMessageParams{
		ChatID:              o.chatID,
		Text:                o.text,
		ParseMode:           botModels.ParseModeHTML,
		LinkPreviewOptions:  &botModels.LinkPreviewOptions{IsDisabled: bot.True()},
		DisableNotification: o.silent,
	}
	if o.replyTo > 0 {
		// 命令消息被删除时仍然发送
		params.ReplyParameters = &botModels.ReplyParameters{
			MessageID:                o.replyTo,
			AllowSendingWithoutReply: true,
		}
	}
	return params
}

// deliver 发送消息，失败只记录日志并返回错误
func (b *Bot) deliver(ctx context.Context, o outgoing) error {
	if _, err := b.bot.SendMessage(ctx, o.params()); err != nil {
		logger.L().Errorf("Failed to send message to chat %d: %v", o.chatID, err)
		return err
	}
	return nil
}

// reply 引用命令消息作答
func (b *Bot) reply(ctx context.Context, msg *botModels.Message, text string) {
	_ = b.deliver(ctx, outgoing{chatID: msg.Chat.ID, text: text, replyTo: msg.ID})
}

func (b *Bot) replyOK(ctx context.Context, msg *botModels.Message, text string) {
	b.reply(ctx, msg, prefixOK+text)
}

func (b *Bot) replyFail(ctx context.Context, msg *botModels.Message, reason string) {
	b.reply(ctx, msg, prefixFail+reason)
}
