package coordinator

import (
	"context"
	"sync"
	"time"

	"news_bot/internal/logger"
)

// 调度默认参数
const (
	DefaultRetryInterval = time.Hour
	DefaultMaxRetries    = 2
	DefaultJobTimeout    = 2 * time.Hour
)

// Job 一次完整运行，attempt 从 0 开始；返回 false 表示需要稍后重试
type Job func(ctx context.Context, attempt int) bool

// Scheduler 每天固定时间执行 Job，失败时按间隔重试
// 同一时刻只会有一个 Job 在运行
type Scheduler struct {
	job           Job
	hour, minute  int
	location      *time.Location
	retryInterval time.Duration
	maxRetries    int
	jobTimeout    time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler 创建每日调度器
func NewScheduler(job Job, hour, minute int, location *time.Location) *Scheduler {
	if location == nil {
		location = time.Local
	}
	return &Scheduler{
		job:           job,
		hour:          hour,
		minute:        minute,
		location:      location,
		retryInterval: DefaultRetryInterval,
		maxRetries:    DefaultMaxRetries,
		jobTimeout:    DefaultJobTimeout,
	}
}

// WithRetries 设置失败重试次数与间隔
func (s *Scheduler) WithRetries(max int, interval time.Duration) *Scheduler {
	if max >= 0 {
		s.maxRetries = max
	}
	if interval > 0 {
		s.retryInterval = interval
	}
	return s
}

// Start 启动调度循环
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	logger.L().Infof("Daily run scheduler started: at=%02d:%02d %s", s.hour, s.minute, s.location)
}

// Stop 停止调度并等待正在执行的 Job 返回
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	logger.L().Info("Daily run scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		now := time.Now().In(s.location)
		next := nextDailyRun(now, s.hour, s.minute, s.location)
		if !s.sleepUntil(ctx, next) {
			return
		}
		s.dispatch(ctx)
	}
}

func (s *Scheduler) dispatch(parent context.Context) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if parent.Err() != nil {
			return
		}

		runCtx, cancel := context.WithTimeout(parent, s.jobTimeout)
		ok := s.job(runCtx, attempt)
		cancel()

		if ok {
			logger.L().Infof("Scheduled run succeeded: attempt=%d", attempt)
			return
		}
		if attempt == s.maxRetries {
			logger.L().Errorf("Scheduled run failed after %d attempts", attempt+1)
			return
		}

		logger.L().Warnf("Scheduled run incomplete: attempt=%d, retrying in %s", attempt, s.retryInterval)
		if !s.sleepUntil(parent, time.Now().Add(s.retryInterval)) {
			return
		}
	}
}

// sleepUntil 等待到 t，被取消时返回 false
func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) bool {
	wait := time.Until(t)
	if wait <= 0 {
		wait = time.Second
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	logger.L().Debugf("Scheduler waiting %s until %s", wait.String(), t.Format(time.RFC3339))

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextDailyRun(now time.Time, hour, minute int, location *time.Location) time.Time {
	local := now.In(location)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
