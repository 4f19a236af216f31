package locator

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 逐条消息评估之间的礼貌性延迟
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer 创建间隔为 interval 的节流器，interval <= 0 时不限速
func NewPacer(interval time.Duration) Pacer {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
