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

// MongoMessageRepository 消息数据访问层（MongoDB 实现）
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository 创建消息 Repository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &MongoMessageRepository{
		collection: db.Collection("channel_posts"),
	}
}

// CreateMessage 创建消息记录
func (r *MongoMessageRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now

	// 使用 Upsert 模式，避免重复插入
	filter := bson.M{
		"telegram_message_id": message.TelegramMessageID,
		"chat_id":             message.ChatID,
	}

	setFields := bson.M{
		"message_type":         message.MessageType,
		"text":                 message.Text,
		"caption":              message.Caption,
		"media_file_id":        message.MediaFileID,
		"media_file_unique_id": message.MediaFileUniqueID,
		"media_file_name":      message.MediaFileName,
		"media_file_size":      message.MediaFileSize,
		"media_mime_type":      message.MediaMimeType,
		"is_edited":            message.IsEdited,
		"edited_at":            message.EditedAt,
		"sent_at":              message.SentAt,
		"updated_at":           message.UpdatedAt,
	}

	setOnInsert := bson.M{
		"created_at": message.CreatedAt,
	}

	update := bson.M{
		"$set":         setFields,
		"$setOnInsert": setOnInsert,
	}

	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByTelegramID 根据 Telegram 消息 ID 和频道 ID 获取消息
func (r *MongoMessageRepository) GetByTelegramID(ctx context.Context, telegramMessageID, chatID int64) (*models.Message, error) {
	filter := bson.M{
		"telegram_message_id": telegramMessageID,
		"chat_id":             chatID,
	}

	var message models.Message
	err := r.collection.FindOne(ctx, filter).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("message not found: message_id=%d, chat_id=%d: %w", telegramMessageID, chatID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &message, nil
}

// UpdateMessageEdit 更新消息编辑信息
// 媒体消息编辑的是 caption，文本消息编辑的是 text；两个字段都更新，读取时取非空者
func (r *MongoMessageRepository) UpdateMessageEdit(ctx context.Context, telegramMessageID, chatID int64, newText string, editedAt time.Time) error {
	filter := bson.M{
		"telegram_message_id": telegramMessageID,
		"chat_id":             chatID,
	}

	existing, err := r.GetByTelegramID(ctx, telegramMessageID, chatID)
	if err != nil {
		return err
	}

	field := "text"
	if existing.IsMediaMessage() {
		field = "caption"
	}

	update := bson.M{
		"$set": bson.M{
			field:        newText,
			"is_edited":  true,
			"edited_at":  editedAt,
			"updated_at": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update message edit: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("message not found: message_id=%d, chat_id=%d: %w", telegramMessageID, chatID, ErrNotFound)
	}

	return nil
}

// ListBefore 按消息 ID 倒序分页
func (r *MongoMessageRepository) ListBefore(ctx context.Context, chatID, before int64, limit int64) ([]*models.Message, error) {
	filter := bson.M{"chat_id": chatID}
	if before > 0 {
		filter["telegram_message_id"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "telegram_message_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

// CountByChat 统计频道消息数
func (r *MongoMessageRepository) CountByChat(ctx context.Context, chatID int64) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context, ttlSeconds int32) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "chat_id", Value: 1},
				{Key: "telegram_message_id", Value: -1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
