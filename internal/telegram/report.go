package telegram

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"news_bot/internal/coordinator"
	"news_bot/internal/logger"
)

// SendRunReport 将下载结果发送给所有 Owner
func (b *Bot) SendRunReport(ctx context.Context, status *coordinator.RunStatus) {
	if status == nil {
		return
	}
	// 全部下载成功时静默推送
	b.notifyOwners(ctx, BuildRunReport(status), status.AllNewspapersDownloaded)
}

// NotifyOwners 向所有 Owner 发送消息
func (b *Bot) NotifyOwners(ctx context.Context, text string) {
	b.notifyOwners(ctx, text, false)
}

func (b *Bot) notifyOwners(ctx context.Context, text string, silent bool) {
	if len(b.ownerIDs) == 0 {
		logger.L().Warn("No owners configured, skipping report")
		return
	}

	for _, ownerID := range b.ownerIDs {
		if err := b.deliver(ctx, outgoing{chatID: ownerID, text: text, silent: silent}); err == nil {
			logger.L().Infof("Sent run report to owner %d", ownerID)
		}
	}
}

// BuildRunReport 构造运行报告文本
func BuildRunReport(status *coordinator.RunStatus) string {
	var text strings.Builder

	headline := "✅ 今日报纸已全部下载"
	if !status.AllNewspapersDownloaded {
		headline = "⚠️ 今日报纸未全部下载"
	}
	text.WriteString(fmt.Sprintf("📰 %s\n\n", headline))
	text.WriteString(fmt.Sprintf("日期: %s\n", status.Date))
	if status.RetryCount > 0 {
		text.WriteString(fmt.Sprintf("重试次数: %d\n", status.RetryCount))
	}
	text.WriteString(fmt.Sprintf("报纸: %d/%d\n", status.NewspaperCount, status.ExpectedCount))
	if !status.FinishedAt.IsZero() && !status.StartedAt.IsZero() {
		text.WriteString(fmt.Sprintf("耗时: %s\n", formatDuration(status.FinishedAt.Sub(status.StartedAt))))
	}

	names := make([]string, 0, len(status.Newspapers))
	for name := range status.Newspapers {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		text.WriteString("\n")
		for _, name := range names {
			mark := "❌"
			if status.Newspapers[name] {
				mark = "✅"
			}
			text.WriteString(fmt.Sprintf("%s %s\n", mark, html.EscapeString(name)))
		}
	}

	if len(status.Highlights) > 0 {
		channels := make([]string, 0, len(status.Highlights))
		for channel := range status.Highlights {
			channels = append(channels, channel)
		}
		sort.Strings(channels)

		text.WriteString("\n🖼 要点:\n")
		for _, channel := range channels {
			text.WriteString(fmt.Sprintf("• %s: %s\n", html.EscapeString(channel),
				html.EscapeString(strings.Join(status.Highlights[channel], ", "))))
		}
	}

	var problems []string
	for _, report := range status.Channels {
		switch report.State {
		case coordinator.StateTimedOut, coordinator.StateErrored:
			problems = append(problems, fmt.Sprintf("• %s: %s", html.EscapeString(report.Name), report.State))
		}
	}
	if len(problems) > 0 {
		text.WriteString("\n🚧 频道异常:\n")
		text.WriteString(strings.Join(problems, "\n"))
		text.WriteString("\n")
	}

	return strings.TrimRight(text.String(), "\n")
}
