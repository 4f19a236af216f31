package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"news_bot/internal/locator"
	"news_bot/internal/logger"

	"github.com/dustin/go-humanize"
)

// DefaultTimeout 单个文件下载超时
const DefaultTimeout = 600 * time.Second

// Outcome 下载结果
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// Record 一次下载的记录
type Record struct {
	Target     string    `json:"target"`
	Path       string    `json:"path"`
	Bytes      int64     `json:"bytes"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	MessageID  int64     `json:"message_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// OK 下载是否成功
func (r *Record) OK() bool { return r != nil && r.Outcome == OutcomeSuccess }

// Orchestrator 将匹配到的附件写入输出目录
type Orchestrator struct {
	source  locator.Source
	timeout time.Duration
}

// NewOrchestrator 创建下载器，timeout <= 0 时使用默认值
func NewOrchestrator(source locator.Source, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{source: source, timeout: timeout}
}

// Fetch 下载 msg 的附件到 dir/target
//
// 先写入同目录的临时文件，完成后重命名；超时或失败时删除临时文件，
// 目标路径不会留下半截文件。不做自动重试。
func (o *Orchestrator) Fetch(ctx context.Context, entity locator.Entity, msg locator.Message, dir, target string) *Record {
	record := &Record{
		Target:    target,
		Path:      filepath.Join(dir, target),
		MessageID: msg.ID,
		StartedAt: time.Now(),
	}

	bytes, err := o.transfer(ctx, entity, msg, dir, record.Path)
	record.FinishedAt = time.Now()
	record.Bytes = bytes

	switch {
	case err == nil:
		record.Outcome = OutcomeSuccess
		logger.L().Infof("Downloaded: %s (%s in %s)", target, humanize.Bytes(uint64(bytes)),
			record.FinishedAt.Sub(record.StartedAt).Round(time.Millisecond))
	case errors.Is(err, context.DeadlineExceeded):
		record.Outcome = OutcomeTimeout
		record.Error = err.Error()
		logger.L().Errorf("Download timed out for %s after %s", target, o.timeout)
	default:
		record.Outcome = OutcomeError
		record.Error = err.Error()
		logger.L().Errorf("Error downloading %s: %v", target, err)
	}

	return record
}

func (o *Orchestrator) transfer(ctx context.Context, entity locator.Entity, msg locator.Message, dir, finalPath string) (int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(finalPath)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// 失败路径统一清理临时文件
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	dlCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type result struct {
		n   int64
		err error
	}
	done := make(chan result, 1)
	progress := newProgressLogger(filepath.Base(finalPath), msg.FileSize)
	writer := &contextWriter{ctx: dlCtx, w: tmp}

	go func() {
		n, err := o.source.Download(dlCtx, entity, msg, writer, progress.update)
		done <- result{n: n, err: err}
	}()

	var res result
	select {
	case <-dlCtx.Done():
		return writer.written.Load(), dlCtx.Err()
	case res = <-done:
	}

	if res.err != nil {
		// 消息源可能把超时包装成其他错误
		if dlCtx.Err() != nil {
			return res.n, dlCtx.Err()
		}
		return res.n, res.err
	}

	if err := tmp.Sync(); err != nil {
		return res.n, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return res.n, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return res.n, fmt.Errorf("move into place: %w", err)
	}
	committed = true

	return res.n, nil
}

// contextWriter 在取消后拒绝继续写入
type contextWriter struct {
	ctx     context.Context
	w       io.Writer
	written atomic.Int64
}

func (c *contextWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	c.written.Add(int64(n))
	return n, err
}

// progressLogger 每跨过 10% 记录一次进度
type progressLogger struct {
	name     string
	fallback int64
	lastStep int64
}

func newProgressLogger(name string, expected int64) *progressLogger {
	return &progressLogger{name: name, fallback: expected, lastStep: -1}
}

func (p *progressLogger) update(done, total int64) {
	if total <= 0 {
		total = p.fallback
	}
	if total <= 0 {
		return
	}

	step := done * 10 / total
	if step <= p.lastStep {
		return
	}
	p.lastStep = step
	logger.L().Infof("Downloaded %s: %s/%s (%d%%)", p.name,
		humanize.Bytes(uint64(done)), humanize.Bytes(uint64(total)), step*10)
}
