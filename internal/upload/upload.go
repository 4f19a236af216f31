// Package upload copies a run's output directory to cloud object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"news_bot/internal/config"
	"news_bot/internal/logger"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism 同时上传的文件数
const DefaultParallelism = 3

// ErrNotConfigured 未配置存储桶
var ErrNotConfigured = errors.New("cloud upload is not configured")

// Backend 对象存储
type Backend interface {
	Put(ctx context.Context, key, localPath, contentType string, size int64) error
	Name() string
}

// Item 单个文件的上传结果
type Item struct {
	LocalPath string `json:"local_path"`
	Key       string `json:"key"`
	Size      int64  `json:"size"`
	Error     string `json:"error,omitempty"`
}

// Result 一次目录上传的结果
type Result struct {
	Folder   string        `json:"folder"`
	Items    []Item        `json:"items"`
	Uploaded int           `json:"uploaded"`
	Failed   int           `json:"failed"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// New 按配置创建存储后端
func New(ctx context.Context, cfg config.UploadConfig) (Backend, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	switch cfg.Backend {
	case "", "s3":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinio(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported upload backend %q", cfg.Backend)
	}
}

// Uploader 把目录下的文件上传到 folder 前缀下
type Uploader struct {
	backend     Backend
	parallelism int
}

// NewUploader 创建上传器
func NewUploader(backend Backend, parallelism int) *Uploader {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Uploader{backend: backend, parallelism: parallelism}
}

// UploadDir 递归上传 dir 下的文件，对象键为 folder/<相对路径>
//
// 单个文件失败只记录在结果中；只有目录无法读取时返回错误。
// filter 非空时只上传文件名包含 filter 的文件。
func (u *Uploader) UploadDir(ctx context.Context, dir, folder, filter string) (*Result, error) {
	start := time.Now()

	files, err := collect(dir, filter)
	if err != nil {
		return nil, err
	}

	result := &Result{Folder: folder, Items: make([]Item, 0, len(files))}
	if len(files) == 0 {
		logger.L().Warnf("Nothing to upload in %s", dir)
		return result, nil
	}

	logger.L().Infof("Uploading %d files from %s to %s:%s", len(files), dir, u.backend.Name(), folder)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.parallelism)

	for _, file := range files {
		g.Go(func() error {
			item := u.uploadOne(gctx, dir, folder, file)

			mu.Lock()
			result.Items = append(result.Items, item)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.Items, func(i, j int) bool { return result.Items[i].Key < result.Items[j].Key })
	for _, item := range result.Items {
		if item.Error != "" {
			result.Failed++
			continue
		}
		result.Uploaded++
		result.Bytes += item.Size
	}
	result.Duration = time.Since(start)

	logger.L().Infof("Upload finished: uploaded=%d, failed=%d, size=%s, took=%s",
		result.Uploaded, result.Failed, humanize.Bytes(uint64(result.Bytes)), result.Duration.Round(time.Millisecond))
	return result, ctx.Err()
}

func (u *Uploader) uploadOne(ctx context.Context, dir, folder, file string) Item {
	rel, _ := filepath.Rel(dir, file)
	item := Item{LocalPath: file, Key: objectKey(folder, rel)}

	info, err := os.Stat(file)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Size = info.Size()

	if err := u.backend.Put(ctx, item.Key, file, contentType(file), item.Size); err != nil {
		logger.L().Errorf("Upload failed: file=%s, key=%s, err=%v", rel, item.Key, err)
		item.Error = err.Error()
		return item
	}

	logger.L().Infof("Uploaded %s (%s)", item.Key, humanize.Bytes(uint64(item.Size)))
	return item
}

func collect(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		// 下载中的临时文件和状态文件的临时副本
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if filter != "" && !strings.Contains(name, filter) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// objectKey 对象键统一使用 / 分隔
func objectKey(folder, rel string) string {
	rel = filepath.ToSlash(rel)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return rel
	}
	return path.Join(folder, rel)
}

func contentType(file string) string {
	mime, err := mimetype.DetectFile(file)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}
