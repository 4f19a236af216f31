package locator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAccessDenied 无权访问频道（未加入、邀请失效、被移出）
	ErrAccessDenied = errors.New("channel access denied")

	// ErrChannelNotFound 频道引用无法解析
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNoAttachment 匹配到的消息没有可下载的附件
	ErrNoAttachment = errors.New("message has no attachment")

	// ErrRejected 消息源拒绝了请求，重试不会成功（参数错误、文件过大）
	ErrRejected = errors.New("request rejected by source")
)

// TransientError 临时性错误（网络抖动、限流）
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("transient source error (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("transient source error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ShouldRetry reports whether a failed source call may succeed when repeated.
// Unknown errors are treated as retryable; access and cancellation errors are not.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrChannelNotFound) || errors.Is(err, ErrNoAttachment) || errors.Is(err, ErrRejected) {
		return false
	}
	return true
}

// retryAfter 返回消息源建议的等待时间
func retryAfter(err error, def time.Duration) time.Duration {
	var transient *TransientError
	if errors.As(err, &transient) && transient.RetryAfter > 0 {
		return transient.RetryAfter
	}
	return def
}
