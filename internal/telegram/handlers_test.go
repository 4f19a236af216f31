package telegram

import (
	"testing"
	"time"

	"news_bot/internal/telegram/models"

	botModels "github.com/go-telegram/bot/models"
)

func TestChannelPostInfo(t *testing.T) {
	chat := botModels.Chat{ID: -100111, Type: botModels.ChatTypeChannel, Title: "Newspapers", Username: "csaccoep"}
	date := int(time.Date(2024, 6, 5, 1, 0, 0, 0, time.UTC).Unix())

	tests := []struct {
		name     string
		msg      *botModels.Message
		wantType string
		wantFile string
		wantName string
		wantSize int64
	}{
		{
			name:     "text",
			msg:      &botModels.Message{ID: 1, Chat: chat, Date: date, Text: "Good morning"},
			wantType: models.MessageTypeText,
		},
		{
			name: "document",
			msg: &botModels.Message{ID: 2, Chat: chat, Date: date, Caption: "Delhi edition",
				Document: &botModels.Document{FileID: "doc", FileUniqueID: "doc-u", FileName: "TH Delhi 05--06.pdf", FileSize: 4096, MimeType: "application/pdf"}},
			wantType: models.MessageTypeDocument,
			wantFile: "doc",
			wantName: "TH Delhi 05--06.pdf",
			wantSize: 4096,
		},
		{
			name: "photo uses largest size",
			msg: &botModels.Message{ID: 3, Chat: chat, Date: date, Caption: "#ToBeReadVajiram",
				Photo: []botModels.PhotoSize{
					{FileID: "small", FileSize: 100},
					{FileID: "large", FileSize: 900},
				}},
			wantType: models.MessageTypePhoto,
			wantFile: "large",
			wantSize: 900,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := channelPostInfo(tt.msg)

			if info.TelegramMessageID != int64(tt.msg.ID) || info.ChatID != chat.ID {
				t.Fatalf("ids = %d/%d", info.TelegramMessageID, info.ChatID)
			}
			if info.ChatTitle != "Newspapers" || info.ChatUsername != "csaccoep" {
				t.Fatalf("chat = %q/%q", info.ChatTitle, info.ChatUsername)
			}
			if info.MessageType != tt.wantType {
				t.Fatalf("MessageType = %s, want %s", info.MessageType, tt.wantType)
			}
			if info.MediaFileID != tt.wantFile || info.MediaFileName != tt.wantName || info.MediaFileSize != tt.wantSize {
				t.Fatalf("media = %q %q %d", info.MediaFileID, info.MediaFileName, info.MediaFileSize)
			}
			if info.SentAt.Unix() != int64(date) {
				t.Fatalf("SentAt = %v", info.SentAt)
			}
			if info.Text != tt.msg.Text || info.Caption != tt.msg.Caption {
				t.Fatalf("body = %q/%q", info.Text, info.Caption)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                            "0秒",
		95 * time.Second:             "1分钟 35秒",
		26*time.Hour + 3*time.Minute: "1天 2小时 3分钟",
		-time.Second:                 "0秒",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Fatalf("formatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}
