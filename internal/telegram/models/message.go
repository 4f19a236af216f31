package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 消息类型常量
const (
	MessageTypeText      = "text"
	MessageTypePhoto     = "photo"
	MessageTypeVideo     = "video"
	MessageTypeDocument  = "document"
	MessageTypeAudio     = "audio"
	MessageTypeAnimation = "animation"
)

// Message 频道消息日志
// Bot API 无法拉取历史消息，Bot 收到的 channel_post 先写入这里，扫描时按消息 ID 倒序分页读取
type Message struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	TelegramMessageID int64              `bson:"telegram_message_id"` // Telegram 消息 ID
	ChatID            int64              `bson:"chat_id"`             // 频道 ID

	// 消息内容
	MessageType string `bson:"message_type"`      // 消息类型
	Text        string `bson:"text,omitempty"`    // 文本内容
	Caption     string `bson:"caption,omitempty"` // 媒体说明文字

	// 媒体信息
	MediaFileID       string `bson:"media_file_id,omitempty"`        // 文件 ID
	MediaFileUniqueID string `bson:"media_file_unique_id,omitempty"` // 跨 Bot 稳定的文件 ID
	MediaFileName     string `bson:"media_file_name,omitempty"`      // 原始文件名（document/video/audio）
	MediaFileSize     int64  `bson:"media_file_size,omitempty"`      // 文件大小
	MediaMimeType     string `bson:"media_mime_type,omitempty"`      // MIME 类型

	// 编辑信息
	IsEdited bool       `bson:"is_edited"`           // 是否被编辑过
	EditedAt *time.Time `bson:"edited_at,omitempty"` // 编辑时间

	// 时间信息
	SentAt    time.Time `bson:"sent_at"`    // 发送时间
	CreatedAt time.Time `bson:"created_at"` // 记录创建时间（TTL 索引基于此字段）
	UpdatedAt time.Time `bson:"updated_at"` // 记录更新时间
}

// IsMediaMessage 是否为媒体消息
func (m *Message) IsMediaMessage() bool {
	switch m.MessageType {
	case MessageTypePhoto, MessageTypeVideo, MessageTypeDocument,
		MessageTypeAudio, MessageTypeAnimation:
		return true
	default:
		return false
	}
}

// Body 正文：文本消息取 Text，媒体消息取 Caption
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}
