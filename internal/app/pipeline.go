package app

import (
	"context"
	"errors"
	"time"

	"news_bot/internal/assemble"
	"news_bot/internal/config"
	"news_bot/internal/email"
	"news_bot/internal/logger"
	"news_bot/internal/ocr"
	"news_bot/internal/organize"
	"news_bot/internal/upload"
)

// Pipeline 下载之后的处理阶段，只依赖本地文件与配置
type Pipeline struct {
	cfg        *config.Config
	now        time.Time
	retryCount int
	ocr        ocr.Engine
}

// NewPipeline 创建当天的处理流程
func NewPipeline(cfg *config.Config, now time.Time, retryCount int) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		now:        now.In(cfg.Location),
		retryCount: retryCount,
		ocr:        ocr.NewTesseract(cfg.OCR.TesseractPath, cfg.OCR.Language),
	}
}

// OutputDir 当天输出目录
func (p *Pipeline) OutputDir() string {
	return p.cfg.OutputDir(p.now)
}

// Date 当天日期（dd-mm-yyyy）
func (p *Pipeline) Date() string {
	return p.now.Format(config.OutputDateLayout)
}

// OCR 识别要点图片
func (p *Pipeline) OCR(ctx context.Context) (*ocr.Result, error) {
	return ocr.ProcessDir(ctx, p.ocr, p.cfg.HighlightsDir(p.now), p.cfg.HighlightTextDir(p.now))
}

// Organize 整理 OCR 文本
func (p *Pipeline) Organize(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return organize.Dir(p.cfg.HighlightTextDir(p.now), p.cfg.OrganizedTextDir(p.now), organize.DefaultMastheads)
}

// Assemble 生成阅读文档
func (p *Pipeline) Assemble(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return assemble.Dir(p.cfg.OrganizedTextDir(p.now), p.OutputDir(), p.cfg.ReadingDocsDir(p.now))
}

// Upload 上传目录，dir 为空时上传当天输出目录；folder 为空时使用配置或日期目录
func (p *Pipeline) Upload(ctx context.Context, dir, folder string) (*upload.Result, error) {
	if dir == "" {
		dir = p.OutputDir()
	}
	if folder == "" {
		folder = p.cfg.Upload.Folder
	}
	if folder == "" {
		folder = p.Date()
	}

	backend, err := upload.New(ctx, p.cfg.Upload)
	if err != nil {
		return nil, err
	}
	return upload.NewUploader(backend, upload.DefaultParallelism).UploadDir(ctx, dir, folder, "")
}

// Email 发送目录下的文件，dir 为空时发送当天输出目录
func (p *Pipeline) Email(ctx context.Context, dir, filter string) ([]string, error) {
	if dir == "" {
		dir = p.OutputDir()
	}

	mailer, err := email.New(p.cfg.Email)
	if err != nil {
		return nil, err
	}
	return mailer.SendFolder(ctx, dir, filter, email.Subject(p.cfg.Email.SubjectBase, p.Date(), p.retryCount))
}

// RunAll 依次执行所有处理阶段
//
// 单个阶段失败只记录日志；未配置的上传或邮件阶段跳过。只有 context 取消会中止。
func (p *Pipeline) RunAll(ctx context.Context) error {
	stages := []struct {
		name string
		run  func(context.Context) error
	}{
		{"ocr", func(ctx context.Context) error { _, err := p.OCR(ctx); return err }},
		{"organize", func(ctx context.Context) error { _, err := p.Organize(ctx); return err }},
		{"assemble", func(ctx context.Context) error { _, err := p.Assemble(ctx); return err }},
		{"upload", func(ctx context.Context) error { _, err := p.Upload(ctx, "", ""); return err }},
		{"email", func(ctx context.Context) error { _, err := p.Email(ctx, "", ""); return err }},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		err := stage.run(ctx)
		switch {
		case err == nil:
			logger.L().Infof("Stage %s finished in %s", stage.name, time.Since(start).Round(time.Millisecond))
		case errors.Is(err, upload.ErrNotConfigured), errors.Is(err, email.ErrNotConfigured):
			logger.L().Warnf("Stage %s skipped: %v", stage.name, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			logger.L().Errorf("Stage %s failed: %v", stage.name, err)
		}
	}
	return nil
}
