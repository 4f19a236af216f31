package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"news_bot/internal/locator"

	"github.com/go-telegram/bot"
)

// classifyError 将 Bot API 错误映射为扫描器可识别的错误类型
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var tooManyRequests *bot.TooManyRequestsError
	if errors.As(err, &tooManyRequests) {
		return &locator.TransientError{
			Err:        err,
			RetryAfter: time.Duration(tooManyRequests.RetryAfter) * time.Second,
		}
	}

	var migrateErr *bot.MigrateError
	if errors.As(err, &migrateErr) {
		return fmt.Errorf("%w: chat migrated to %d", locator.ErrChannelNotFound, migrateErr.MigrateToChatID)
	}

	switch {
	case errors.Is(err, bot.ErrorForbidden), errors.Is(err, bot.ErrorUnauthorized):
		return fmt.Errorf("%w: %v", locator.ErrAccessDenied, err)
	case errors.Is(err, bot.ErrorNotFound):
		return fmt.Errorf("%w: %v", locator.ErrChannelNotFound, err)
	case errors.Is(err, bot.ErrorBadRequest):
		if strings.Contains(strings.ToLower(err.Error()), "chat not found") {
			return fmt.Errorf("%w: %v", locator.ErrChannelNotFound, err)
		}
		return fmt.Errorf("%w: %v", locator.ErrRejected, err)
	}

	return &locator.TransientError{Err: err}
}
