package locator

import (
	"context"
	"fmt"
	"time"

	"news_bot/internal/logger"
)

// 扫描默认参数
const (
	DefaultMessageBudget = 200
	DefaultPageSize      = 50
	DefaultPacing        = 500 * time.Millisecond
	DefaultFetchAttempts = 3
	DefaultRetryDelay    = 2 * time.Second
)

// Scanner 分页扫描频道历史并查找目标文件
type Scanner struct {
	source        Source
	pacer         Pacer
	budget        int
	pageSize      int
	minFragments  int
	fetchAttempts int
	retryDelay    time.Duration
}

// ScannerOption 自定义扫描行为
type ScannerOption func(*Scanner)

// WithBudget 设置单次扫描最多检查的消息数
func WithBudget(budget int) ScannerOption {
	return func(s *Scanner) {
		if budget > 0 {
			s.budget = budget
		}
	}
}

// WithPageSize 设置每页消息数
func WithPageSize(size int) ScannerOption {
	return func(s *Scanner) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithPacer 自定义节流器（测试时使用）
func WithPacer(p Pacer) ScannerOption {
	return func(s *Scanner) {
		if p != nil {
			s.pacer = p
		}
	}
}

// WithMinDateFragments 宽松匹配至少需要命中的日期片段数
func WithMinDateFragments(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.minFragments = n
		}
	}
}

// WithRetry 设置分页请求的重试次数与间隔
func WithRetry(attempts int, delay time.Duration) ScannerOption {
	return func(s *Scanner) {
		if attempts > 0 {
			s.fetchAttempts = attempts
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

// NewScanner 创建扫描器
func NewScanner(source Source, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		source:        source,
		budget:        DefaultMessageBudget,
		pageSize:      DefaultPageSize,
		minFragments:  1,
		fetchAttempts: DefaultFetchAttempts,
		retryDelay:    DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pacer == nil {
		s.pacer = NewPacer(DefaultPacing)
	}
	return s
}

// Scan 在频道历史中查找 expectations 中任一目标
//
// 主日期写法（精确或空格变体）命中即返回；去零等其他日期写法的命中与
// 宽松匹配只记录第一个候选，预算或历史耗尽后依次返回。未找到返回 nil, nil。
func (s *Scanner) Scan(ctx context.Context, entity Entity, expectations []Expectation) (*MatchResult, error) {
	return s.ScanBefore(ctx, entity, expectations, 0)
}

// ScanBefore 与 Scan 相同，但只检查 ID 小于 before 的消息（0 表示从最新开始）
func (s *Scanner) ScanBefore(ctx context.Context, entity Entity, expectations []Expectation, before int64) (*MatchResult, error) {
	if len(expectations) == 0 {
		return nil, nil
	}

	var (
		cursor    = before
		inspected int
		pages     int
		alternate *MatchResult
		loose     *MatchResult
	)

	for inspected < s.budget {
		// 每次翻页前检查取消
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		limit := s.pageSize
		if remaining := s.budget - inspected; remaining < limit {
			limit = remaining
		}

		page, err := s.fetchPage(ctx, entity, cursor, limit)
		if err != nil {
			return nil, err
		}
		pages++

		if len(page) == 0 {
			logger.L().Debugf("History exhausted: channel=%s, pages=%d, inspected=%d", entity.Ref, pages, inspected)
			break
		}

		for _, msg := range page {
			if inspected >= s.budget {
				break
			}
			if err := s.pacer.Wait(ctx); err != nil {
				return nil, err
			}
			inspected++

			candidate := msg.Candidate()
			if result := s.primary(candidate, expectations); result != nil {
				result.Message = msg
				logger.L().Infof("Matched %q in %s: tier=%s, message_id=%d, inspected=%d",
					result.Expected, entity.Ref, result.Tier, msg.ID, inspected)
				return result, nil
			}
			if alternate == nil {
				if result := s.alternate(candidate, expectations); result != nil {
					result.Message = msg
					alternate = result
					logger.L().Debugf("Alternate date candidate remembered: channel=%s, message_id=%d, name=%q",
						entity.Ref, msg.ID, candidate.Name)
					continue
				}
			}
			if loose == nil {
				if result := s.loose(candidate, expectations); result != nil {
					result.Message = msg
					loose = result
					logger.L().Debugf("Loose candidate remembered: channel=%s, message_id=%d, name=%q",
						entity.Ref, msg.ID, candidate.Name)
				}
			}
		}

		next := page[len(page)-1].ID
		if cursor != 0 && next >= cursor {
			logger.L().Warnf("History cursor did not advance: channel=%s, cursor=%d, next=%d", entity.Ref, cursor, next)
			break
		}
		cursor = next
	}

	if alternate != nil {
		logger.L().Infof("Matched %q in %s: tier=%s, message_id=%d, inspected=%d",
			alternate.Expected, entity.Ref, alternate.Tier, alternate.Message.ID, inspected)
		return alternate, nil
	}
	if loose != nil {
		logger.L().Warnf("Using loose match in %s: name=%q, message_id=%d, expected=%q",
			entity.Ref, loose.Candidate.Name, loose.Message.ID, loose.Expected)
		return loose, nil
	}

	logger.L().Infof("No match in %s after %d messages (%d pages)", entity.Ref, inspected, pages)
	return nil, nil
}

func (s *Scanner) primary(c Candidate, expectations []Expectation) *MatchResult {
	for _, exp := range expectations {
		if result := matchVariant(exp, c, 0); result != nil {
			return result
		}
	}
	return nil
}

func (s *Scanner) alternate(c Candidate, expectations []Expectation) *MatchResult {
	for _, exp := range expectations {
		for i := 1; i < len(exp.Variants); i++ {
			if result := matchVariant(exp, c, i); result != nil {
				return result
			}
		}
	}
	return nil
}

func (s *Scanner) loose(c Candidate, expectations []Expectation) *MatchResult {
	for _, exp := range expectations {
		if result := matchLoose(exp, c, s.minFragments); result != nil {
			return result
		}
	}
	return nil
}

// fetchPage 拉取一页历史，临时错误按间隔重试
func (s *Scanner) fetchPage(ctx context.Context, entity Entity, before int64, limit int) ([]Message, error) {
	var lastErr error
	for attempt := 1; attempt <= s.fetchAttempts; attempt++ {
		page, err := s.source.History(ctx, entity, before, limit)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !ShouldRetry(err) || attempt == s.fetchAttempts {
			break
		}

		wait := retryAfter(err, s.retryDelay)
		logger.L().Warnf("History fetch attempt %d failed for %s: %v, retrying in %s", attempt, entity.Ref, err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("fetch history of %s before %d: %w", entity.Ref, before, lastErr)
}
