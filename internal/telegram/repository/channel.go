package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"news_bot/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoChannelRepository 频道登记数据访问层
type MongoChannelRepository struct {
	collection *mongo.Collection
}

// NewMongoChannelRepository 创建频道 Repository
func NewMongoChannelRepository(db *mongo.Database) ChannelRepository {
	return &MongoChannelRepository{
		collection: db.Collection("channels"),
	}
}

// Upsert 创建或更新频道
func (r *MongoChannelRepository) Upsert(ctx context.Context, channel *models.Channel) error {
	now := time.Now()
	channel.UpdatedAt = now
	channel.Username = models.NormalizeUsername(channel.Username)

	filter := bson.M{"chat_id": channel.ChatID}

	setFields := bson.M{
		"title":      channel.Title,
		"bot_status": channel.BotStatus,
		"updated_at": channel.UpdatedAt,
	}
	if channel.Username != "" {
		setFields["username"] = channel.Username
	}

	update := bson.M{
		"$set": setFields,
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}
	if len(channel.InviteTokens) > 0 {
		update["$addToSet"] = bson.M{"invite_tokens": bson.M{"$each": channel.InviteTokens}}
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert channel: %w", err)
	}

	return nil
}

// GetByChatID 根据频道 ID 获取
func (r *MongoChannelRepository) GetByChatID(ctx context.Context, chatID int64) (*models.Channel, error) {
	return r.findOne(ctx, bson.M{"chat_id": chatID}, fmt.Sprintf("chat_id=%d", chatID))
}

// GetByUsername 根据用户名获取
func (r *MongoChannelRepository) GetByUsername(ctx context.Context, username string) (*models.Channel, error) {
	normalized := models.NormalizeUsername(username)
	return r.findOne(ctx, bson.M{"username": normalized}, "username="+normalized)
}

// GetByInviteToken 根据邀请 token 获取
func (r *MongoChannelRepository) GetByInviteToken(ctx context.Context, token string) (*models.Channel, error) {
	return r.findOne(ctx, bson.M{"invite_tokens": token}, "invite_token")
}

// AddInviteToken 关联邀请 token
func (r *MongoChannelRepository) AddInviteToken(ctx context.Context, chatID int64, token string) error {
	update := bson.M{
		"$addToSet": bson.M{"invite_tokens": token},
		"$set":      bson.M{"updated_at": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"chat_id": chatID}, update)
	if err != nil {
		return fmt.Errorf("failed to add invite token: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("channel not found: chat_id=%d: %w", chatID, ErrNotFound)
	}
	return nil
}

// UpdateBotStatus 更新 Bot 状态
func (r *MongoChannelRepository) UpdateBotStatus(ctx context.Context, chatID int64, status string) error {
	update := bson.M{
		"$set": bson.M{
			"bot_status": status,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"chat_id": chatID}, update)
	if err != nil {
		return fmt.Errorf("failed to update bot status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("channel not found: chat_id=%d: %w", chatID, ErrNotFound)
	}
	return nil
}

// List 列出所有频道
func (r *MongoChannelRepository) List(ctx context.Context) ([]*models.Channel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer cursor.Close(ctx)

	var channels []*models.Channel
	if err := cursor.All(ctx, &channels); err != nil {
		return nil, fmt.Errorf("failed to decode channels: %w", err)
	}
	return channels, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoChannelRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chat_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "invite_tokens", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoChannelRepository) findOne(ctx context.Context, filter bson.M, desc string) (*models.Channel, error) {
	var channel models.Channel
	err := r.collection.FindOne(ctx, filter).Decode(&channel)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("channel not found: %s: %w", desc, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return &channel, nil
}
