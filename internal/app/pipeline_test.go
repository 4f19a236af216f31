package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"news_bot/internal/config"
	"news_bot/internal/email"
	"news_bot/internal/upload"

	"github.com/fumiama/go-docx"
)

type staticEngine map[string]string

func (e staticEngine) Extract(ctx context.Context, imagePath string) (string, error) {
	text, ok := e[filepath.Base(imagePath)]
	if !ok {
		return "", errors.New("unreadable image")
	}
	return text, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, time.Time) {
	t.Helper()
	cfg := &config.Config{
		BaseDir:  t.TempDir(),
		Location: time.UTC,
		Upload:   config.UploadConfig{Backend: "s3"},
		Email:    config.EmailConfig{SubjectBase: "Daily News Articles"},
	}
	now := time.Date(2024, time.June, 5, 7, 0, 0, 0, time.UTC)
	return NewPipeline(cfg, now, 0), now
}

func TestPipelineRunAll(t *testing.T) {
	p, now := newTestPipeline(t)
	p.ocr = staticEngine{
		"Indian_Express_05-06-2024.jpg": "#ToBeReadVajiram The Indian EXPRESS\n" +
			"Monsoon reaches Kerala Page 1\nRBI keeps repo rate unchanged Page 7\nSubscribe now",
	}

	highlights := p.cfg.HighlightsDir(now)
	if err := os.MkdirAll(highlights, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(highlights, "Indian_Express_05-06-2024.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	// 上传与邮件未配置时跳过，不算失败
	if err := p.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	organized, err := os.ReadFile(filepath.Join(p.cfg.OrganizedTextDir(now), "Indian_Express_05-06-2024.txt"))
	if err != nil {
		t.Fatalf("organized text missing: %v", err)
	}
	if !strings.Contains(string(organized), "Contents from Page 7:\nRBI keeps repo rate unchanged") {
		t.Fatalf("unexpected organized text:\n%s", organized)
	}

	f, err := os.Open(filepath.Join(p.cfg.ReadingDocsDir(now), "Indian_Express_05-06-2024.docx"))
	if err != nil {
		t.Fatalf("reading document missing: %v", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		t.Fatalf("reading document is not a docx: %v", err)
	}
	var found bool
	for _, item := range doc.Document.Body.Items {
		if para, ok := item.(*docx.Paragraph); ok && strings.Contains(para.String(), "Monsoon reaches Kerala") {
			found = true
		}
	}
	if !found {
		t.Fatal("reading document lacks headline")
	}
}

func TestPipelineUnconfiguredStages(t *testing.T) {
	p, _ := newTestPipeline(t)

	if _, err := p.Upload(context.Background(), "", ""); !errors.Is(err, upload.ErrNotConfigured) {
		t.Fatalf("Upload() error = %v, want ErrNotConfigured", err)
	}
	if _, err := p.Email(context.Background(), "", ""); !errors.Is(err, email.ErrNotConfigured) {
		t.Fatalf("Email() error = %v, want ErrNotConfigured", err)
	}
}

func TestPipelineRunAllCancelled(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.RunAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunAll() error = %v, want context.Canceled", err)
	}
}

func TestPipelineDate(t *testing.T) {
	cfg := &config.Config{BaseDir: "/data", Location: time.FixedZone("IST", 5*3600+1800)}
	p := NewPipeline(cfg, time.Date(2024, time.June, 4, 20, 0, 0, 0, time.UTC), 2)

	if p.Date() != "05-06-2024" {
		t.Fatalf("Date() = %q", p.Date())
	}
	if p.OutputDir() != filepath.Join("/data", "05-06-2024") {
		t.Fatalf("OutputDir() = %q", p.OutputDir())
	}
}
