package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"news_bot/internal/config"

	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	c.messages = append(c.messages, m...)
	return c.err
}

func testConfig() config.EmailConfig {
	return config.EmailConfig{
		Sender:      "bot@example.com",
		Password:    "secret",
		Receivers:   []string{"a@example.com", "b@example.com"},
		SMTPHost:    "smtp.example.com",
		SMTPPort:    465,
		SubjectBase: "Daily News Articles",
	}
}

func TestNewRequiresConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Receivers = nil
	if _, err := New(cfg); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendFolder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Indian_Express_05-06-2024.pdf", "The_Hindu_05-06-2024.pdf", ".tmp.part"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "Highlights"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	capture := &captureSender{}
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m.sender = capture

	files, err := m.SendFolder(context.Background(), dir, "", "Daily News Articles - 05-06-2024")
	if err != nil {
		t.Fatalf("SendFolder() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 attachments, got %v", files)
	}
	if len(capture.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(capture.messages))
	}

	msg := capture.messages[0]
	if got := msg.GetHeader("To"); !reflect.DeepEqual(got, []string{"a@example.com", "b@example.com"}) {
		t.Fatalf("To = %v", got)
	}
	if got := msg.GetHeader("Subject"); len(got) != 1 || got[0] != "Daily News Articles - 05-06-2024" {
		t.Fatalf("Subject = %v", got)
	}
}

func TestSendFolderFilterNoMatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "The_Hindu_05-06-2024.pdf"), []byte("data"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	capture := &captureSender{}
	m.sender = capture

	if _, err := m.SendFolder(context.Background(), dir, "Express", "s"); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	if len(capture.messages) != 0 {
		t.Fatal("no message should be sent")
	}
}

func TestSendError(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m.sender = &captureSender{err: errors.New("auth failed")}

	if err := m.Send(context.Background(), Message{Subject: "s"}); err == nil {
		t.Fatal("expected send error")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("Daily News Articles", "05-06-2024", 0); got != "Daily News Articles - 05-06-2024" {
		t.Fatalf("Subject() = %q", got)
	}
	if got := Subject("Daily News Articles", "05-06-2024", 2); got != "Daily News Articles - 05-06-2024 (retry 2)" {
		t.Fatalf("Subject() = %q", got)
	}
}
