// Package mongo 提供频道消息日志使用的 MongoDB 连接
package mongo

import (
	"context"
	"fmt"
	"time"

	"news_bot/internal/config"
	"news_bot/internal/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultConnectTimeout 连接与首次 ping 的超时
const DefaultConnectTimeout = 10 * time.Second

// Client 封装 MongoDB 客户端及其数据库名
type Client struct {
	*mongo.Client
	dbName string
}

// Config MongoDB 连接配置
type Config struct {
	URI      string        // 例如 "mongodb://localhost:27017"
	Database string        // 数据库名称
	Timeout  time.Duration // 连接超时，0 使用默认值
	AppName  string        // 出现在服务端连接日志中的应用名
}

// NewClient 连接 MongoDB 并校验可用
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MongoDB URI cannot be empty")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConnectTimeout
	}

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)
	if cfg.AppName != "" {
		clientOptions.SetAppName(cfg.AppName)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.L().Infof("Connected to MongoDB database %s", cfg.Database)
	return &Client{Client: client, dbName: cfg.Database}, nil
}

// InitFromConfig 使用应用配置连接 MongoDB
func InitFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	return NewClient(ctx, Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDBName,
		AppName:  "news_bot",
	})
}

// Close 断开连接
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Disconnect(ctx)
}

// Database 返回配置的数据库句柄
func (c *Client) Database() *mongo.Database {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Database(c.dbName)
}

// Ping 校验连接，/ping 命令使用
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("MongoDB client is not initialized")
	}
	return c.Client.Ping(ctx, readpref.Primary())
}
