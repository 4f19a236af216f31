// Package email 将当天的文件作为附件发送给订阅人
package email

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"news_bot/internal/config"
	"news_bot/internal/logger"

	"gopkg.in/gomail.v2"
)

var (
	// ErrNotConfigured 未配置发件人或收件人
	ErrNotConfigured = errors.New("email is not configured")

	// ErrNoFiles 目录中没有可发送的文件
	ErrNoFiles = errors.New("no files to send")
)

// sender gomail.Dialer 的发送接口
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer 邮件发送
type Mailer struct {
	cfg    config.EmailConfig
	sender sender
}

// New 创建 Mailer，465 端口使用 SSL
func New(cfg config.EmailConfig) (*Mailer, error) {
	if cfg.Sender == "" || cfg.Password == "" || len(cfg.Receivers) == 0 {
		return nil, ErrNotConfigured
	}
	return &Mailer{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Sender, cfg.Password),
	}, nil
}

// Message 一封邮件的内容
type Message struct {
	Subject string
	Body    string
	Files   []string
}

// SendFolder 发送 folder 下的文件（不递归），filter 非空时只发送文件名包含 filter 的文件
func (m *Mailer) SendFolder(ctx context.Context, folder, filter, subject string) ([]string, error) {
	files, err := Attachments(folder, filter)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, folder)
	}

	msg := Message{
		Subject: subject,
		Body:    "Attached are today's news articles.",
		Files:   files,
	}
	if err := m.Send(ctx, msg); err != nil {
		return nil, err
	}
	return files, nil
}

// Send 发送邮件
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.cfg.Sender)
	gm.SetHeader("To", m.cfg.Receivers...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)
	for _, file := range msg.Files {
		gm.Attach(file)
	}

	if err := m.sender.DialAndSend(gm); err != nil {
		return fmt.Errorf("send email via %s:%d: %w", m.cfg.SMTPHost, m.cfg.SMTPPort, err)
	}

	logger.L().Infof("Email sent: subject=%q, receivers=%d, attachments=%d", msg.Subject, len(m.cfg.Receivers), len(msg.Files))
	return nil
}

// Attachments 列出 folder 下可作为附件的文件
func Attachments(folder, filter string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", folder, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		files = append(files, filepath.Join(folder, name))
	}
	sort.Strings(files)
	return files, nil
}

// Subject 邮件标题：基础标题、日期，重试时追加重试次数
func Subject(base, date string, retryCount int) string {
	subject := fmt.Sprintf("%s - %s", base, date)
	if retryCount > 0 {
		subject += fmt.Sprintf(" (retry %d)", retryCount)
	}
	return subject
}
