package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bot 在频道中的状态
const (
	ChannelStatusAdministrator = "administrator"
	ChannelStatusMember        = "member"
	ChannelStatusLeft          = "left"
	ChannelStatusKicked        = "kicked"
)

// Channel Bot 已知的频道
// 由 my_chat_member 更新和解析频道时写入；私有频道通过邀请 token 关联
type Channel struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ChatID       int64              `bson:"chat_id"`
	Title        string             `bson:"title"`
	Username     string             `bson:"username,omitempty"` // 不含 @，统一小写
	InviteTokens []string           `bson:"invite_tokens,omitempty"`
	BotStatus    string             `bson:"bot_status"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

// IsAccessible Bot 是否仍在频道中
func (c *Channel) IsAccessible() bool {
	return c.BotStatus == ChannelStatusAdministrator || c.BotStatus == ChannelStatusMember
}

// NormalizeUsername 去掉 @ 并转为小写
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
