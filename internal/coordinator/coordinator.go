// Package coordinator drives one download run: every configured channel is
// joined if needed, scanned for today's files, and the results are folded
// into a RunStatus that an external scheduler can act on.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"news_bot/internal/catalog"
	"news_bot/internal/config"
	"news_bot/internal/download"
	"news_bot/internal/locator"
	"news_bot/internal/logger"

	"github.com/google/uuid"
)

const (
	// DefaultChannelTimeout 单个频道的处理上限
	DefaultChannelTimeout = 300 * time.Second
	// MaxMatchAttempts 下载失败后继续向更早消息查找的次数上限
	MaxMatchAttempts = 3
)

// Scanner 频道扫描，before 为 0 时从最新消息开始
type Scanner interface {
	ScanBefore(ctx context.Context, entity locator.Entity, expectations []locator.Expectation, before int64) (*locator.MatchResult, error)
}

// Fetcher 附件下载
type Fetcher interface {
	Fetch(ctx context.Context, entity locator.Entity, msg locator.Message, dir, target string) *download.Record
}

// Options 运行参数
type Options struct {
	OutputDir      string
	Now            time.Time
	ExpectedCount  int // <= 0 时按清单计算
	RetryCount     int
	ChannelTimeout time.Duration
	JoinSettle     time.Duration
}

// Coordinator 逐个处理频道
type Coordinator struct {
	source  locator.Source
	scanner Scanner
	fetcher Fetcher
	opts    Options
}

// New 创建协调器
func New(source locator.Source, scanner Scanner, fetcher Fetcher, opts Options) *Coordinator {
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = DefaultChannelTimeout
	}
	if opts.JoinSettle < 0 {
		opts.JoinSettle = 0
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	return &Coordinator{source: source, scanner: scanner, fetcher: fetcher, opts: opts}
}

// Run 按顺序处理所有频道并返回汇总状态
//
// 单个频道的错误或超时只影响该频道；父 context 取消时剩余频道标记为 errored。
func (c *Coordinator) Run(ctx context.Context, channels []catalog.Channel) *RunStatus {
	expected := c.opts.ExpectedCount
	if expected <= 0 {
		expected = (&catalog.Catalog{Channels: channels}).ExpectedNewspapers()
	}

	status := newRunStatus(uuid.NewString(), c.opts.Now.Format(config.OutputDateLayout), c.opts.RetryCount, expected)
	logger.L().Infof("Download run started: run_id=%s, date=%s, channels=%d, expected_newspapers=%d",
		status.RunID, status.Date, len(channels), expected)

	// 报纸预先记为未下载，保证状态文件列出全部期望项
	for _, ch := range channels {
		if ch.Kind == catalog.KindNewspaper {
			for _, f := range ch.Files {
				status.RecordNewspaper(f.DisplayName(), false)
			}
		}
	}

	for _, ch := range channels {
		report := &ChannelReport{Ref: ch.Ref, Name: ch.DisplayName(), Kind: ch.Kind, State: StatePending}
		status.Channels = append(status.Channels, report)

		if err := ctx.Err(); err != nil {
			report.State = StateErrored
			report.Error = err.Error()
			continue
		}

		c.runChannel(ctx, ch, report, status)
		logger.L().Infof("Channel finished: channel=%s, state=%s, found=%d, missing=%d",
			ch.Ref, report.State, len(report.Found), len(report.Missing))
	}

	status.Finalize()
	logger.L().Infof("Download run finished: run_id=%s, newspapers=%d/%d, success=%t",
		status.RunID, status.NewspaperCount, status.ExpectedCount, status.AllNewspapersDownloaded)
	return status
}

func (c *Coordinator) runChannel(parent context.Context, ch catalog.Channel, report *ChannelReport, status *RunStatus) {
	ctx, cancel := context.WithTimeout(parent, c.opts.ChannelTimeout)
	defer cancel()

	entity, err := c.prepare(ctx, ch)
	if err != nil {
		c.fail(ctx, ch, report, err)
		return
	}

	report.State = StateScanning
	var chErr error
	switch ch.Kind {
	case catalog.KindNewspaper:
		chErr = c.scanNewspapers(ctx, ch, entity, report, status)
	case catalog.KindHighlights:
		chErr = c.scanHighlights(ctx, ch, entity, report, status)
	default:
		chErr = fmt.Errorf("unknown channel kind %q", ch.Kind)
	}

	if chErr != nil {
		c.fail(ctx, ch, report, chErr)
		return
	}

	if len(report.Found) > 0 {
		report.State = StateMatched
	} else {
		report.State = StateNotFound
	}
}

// prepare 加入私有频道并解析频道实体
func (c *Coordinator) prepare(ctx context.Context, ch catalog.Channel) (locator.Entity, error) {
	if ch.IsPrivate() {
		if err := locator.EnsureJoined(ctx, c.source, ch.Ref, c.opts.JoinSettle); err != nil {
			return locator.Entity{}, err
		}
	}

	entity, err := c.source.Resolve(ctx, ch.Ref)
	if err != nil {
		return locator.Entity{}, fmt.Errorf("resolve %s: %w", ch.Ref, err)
	}
	logger.L().Infof("Verified access to channel: %s (id=%d)", ch.Ref, entity.ID)
	return entity, nil
}

func (c *Coordinator) fail(ctx context.Context, ch catalog.Channel, report *ChannelReport, err error) {
	report.Error = err.Error()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		report.State = StateTimedOut
		logger.L().Errorf("Timeout checking %s after %s", ch.Ref, c.opts.ChannelTimeout)
		return
	}
	report.State = StateErrored
	logger.L().Errorf("Error checking %s: %v", ch.Ref, err)
}

func (c *Coordinator) scanNewspapers(ctx context.Context, ch catalog.Channel, entity locator.Entity, report *ChannelReport, status *RunStatus) error {
	for _, f := range ch.Files {
		name := f.DisplayName()

		exp, err := f.Expectation(c.opts.Now, ch.IsPrivate())
		if err != nil {
			return err
		}
		target, err := f.TargetName(c.opts.Now)
		if err != nil {
			return err
		}

		logger.L().Infof("Checking %s for: %s", ch.Ref, exp.Primary())
		ok, err := c.locate(ctx, entity, exp, c.opts.OutputDir, target, report)
		if err != nil {
			return err
		}

		status.RecordNewspaper(name, ok)
		if ok {
			report.Found = append(report.Found, name)
		} else {
			report.Missing = append(report.Missing, name)
		}
	}
	return nil
}

func (c *Coordinator) scanHighlights(ctx context.Context, ch catalog.Channel, entity locator.Entity, report *ChannelReport, status *RunStatus) error {
	dir := filepath.Join(c.opts.OutputDir, config.HighlightsDirName)

	for _, p := range ch.Patterns {
		name := p.DisplayName()

		exp, err := p.Expectation(c.opts.Now)
		if err != nil {
			return err
		}
		target, err := p.TargetName(c.opts.Now)
		if err != nil {
			return err
		}

		logger.L().Infof("Checking %s for highlights: %q", ch.Ref, exp.Primary())
		ok, err := c.locate(ctx, entity, exp, dir, target, report)
		if err != nil {
			return err
		}

		// 要点缺失不算失败
		if ok {
			status.RecordHighlight(ch.DisplayName(), name)
			report.Found = append(report.Found, name)
		} else {
			report.Missing = append(report.Missing, name)
		}
	}
	return nil
}

// locate 扫描并下载一个目标
// 返回的错误会终止整个频道：超时、取消、无权访问；其他扫描错误只影响当前目标。
// 命中消息下载出错（非超时）时从该消息之前继续查找。
func (c *Coordinator) locate(ctx context.Context, entity locator.Entity, exp locator.Expectation, dir, target string, report *ChannelReport) (bool, error) {
	var before int64
	for attempt := 1; ; attempt++ {
		result, err := c.scanner.ScanBefore(ctx, entity, []locator.Expectation{exp}, before)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, locator.ErrAccessDenied) || errors.Is(err, locator.ErrChannelNotFound) {
				return false, err
			}
			logger.L().Warnf("Scan for %q in %s failed: %v", exp.Label, entity.Ref, err)
			return false, nil
		}
		if result == nil {
			logger.L().Infof("File not found in %s with any date format: %s", entity.Ref, exp.Primary())
			return false, nil
		}

		record := c.fetcher.Fetch(ctx, entity, result.Message, dir, target)
		report.Records = append(report.Records, record)
		if record.OK() {
			return true, nil
		}

		// 下载超时由频道超时引起时，频道整体结束
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if record.Outcome != download.OutcomeError || attempt >= MaxMatchAttempts {
			return false, nil
		}
		before = result.Message.ID
		logger.L().Warnf("Download of message %d in %s failed, scanning older messages for %s",
			before, entity.Ref, exp.Primary())
	}
}
