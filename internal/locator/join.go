package locator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"news_bot/internal/logger"
)

// DefaultJoinSettle 加入私有频道后的生效等待
const DefaultJoinSettle = 2 * time.Second

// ParseInvite 解析私有频道邀请链接，返回邀请 token
// 支持 https://t.me/+TOKEN 与 https://t.me/joinchat/TOKEN
func ParseInvite(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"https://", "http://"} {
		ref = strings.TrimPrefix(ref, prefix)
	}
	ref = strings.TrimPrefix(ref, "www.")

	for _, prefix := range []string{"t.me/+", "telegram.me/+", "t.me/joinchat/", "telegram.me/joinchat/"} {
		if strings.HasPrefix(ref, prefix) {
			token := strings.Trim(strings.TrimPrefix(ref, prefix), "/")
			return token, token != ""
		}
	}
	return "", false
}

// EnsureJoined 加入私有频道：先用邀请 token，失败后用完整链接
// 公开频道直接返回
func EnsureJoined(ctx context.Context, source Source, ref string, settle time.Duration) error {
	token, private := ParseInvite(ref)
	if !private {
		return nil
	}

	logger.L().Infof("Attempting to join private channel: %s", ref)

	inviteErr := source.JoinByInvite(ctx, token)
	if inviteErr != nil {
		logger.L().Warnf("Couldn't join %s using invite token, trying full URL: %v", ref, inviteErr)

		if urlErr := source.JoinByURL(ctx, ref); urlErr != nil {
			return fmt.Errorf("join private channel %s: invite: %v; url: %w", ref, inviteErr, urlErr)
		}
	}

	if settle > 0 {
		timer := time.NewTimer(settle)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	logger.L().Infof("Joined private channel: %s", ref)
	return nil
}
