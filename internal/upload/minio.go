package upload

import (
	"context"
	"fmt"
	"strings"

	"news_bot/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio 基于 minio-go 的后端
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio 创建 MinIO 后端并确保存储桶存在
func NewMinio(ctx context.Context, cfg config.UploadConfig) (*Minio, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: S3_ENDPOINT is required for the minio backend", ErrNotConfigured)
	}

	// minio-go 只接受 host:port
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	m := &Minio{client: client, bucket: cfg.Bucket}
	if err := m.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Minio) ensureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", m.bucket, err)
	}
	return nil
}

// Name 后端名称
func (m *Minio) Name() string { return "minio://" + m.bucket }

// Put 上传单个文件
func (m *Minio) Put(ctx context.Context, key, localPath, contentType string, size int64) error {
	_, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}
	return nil
}
