// Package ocr turns the highlight images recovered by a run into plain text.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"news_bot/internal/logger"
)

// Engine 图片转文字
type Engine interface {
	Extract(ctx context.Context, imagePath string) (string, error)
}

// Tesseract 调用 tesseract 命令行
// 参数与报纸版面一致：LSTM 引擎（oem 3）、自动分页含方向检测（psm 1）
type Tesseract struct {
	Path     string
	Language string
}

// NewTesseract 创建 tesseract 引擎，path 为空时从 PATH 查找
func NewTesseract(path, language string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Path: path, Language: language}
}

// Extract 识别图片文字
func (t *Tesseract) Extract(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Path, imagePath, "stdout",
		"--oem", "3", "--psm", "1", "-l", t.Language)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("tesseract %s: %w", filepath.Base(imagePath), err)
		}
		return "", fmt.Errorf("tesseract %s: %w: %s", filepath.Base(imagePath), err, msg)
	}
	return stdout.String(), nil
}

// Result 一次目录识别的结果
type Result struct {
	Written []string // 生成的文本文件
	Failed  map[string]string
}

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ProcessDir 识别 srcDir 下的图片，文字写入 dstDir/<同名>.txt
//
// 单张图片失败只记录并跳过；srcDir 不存在视为没有图片。
func ProcessDir(ctx context.Context, engine Engine, srcDir, dstDir string) (*Result, error) {
	result := &Result{Failed: make(map[string]string)}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.L().Warnf("Highlights folder not found: %s", srcDir)
			return result, nil
		}
		return nil, fmt.Errorf("read %s: %w", srcDir, err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		images = append(images, entry.Name())
	}
	sort.Strings(images)

	if len(images) == 0 {
		logger.L().Warnf("No highlight images in %s", srcDir)
		return result, nil
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dstDir, err)
	}

	for _, name := range images {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		text, err := engine.Extract(ctx, filepath.Join(srcDir, name))
		if err != nil {
			logger.L().Errorf("OCR failed: image=%s, err=%v", name, err)
			result.Failed[name] = err.Error()
			continue
		}

		out := filepath.Join(dstDir, strings.TrimSuffix(name, filepath.Ext(name))+".txt")
		if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
			logger.L().Errorf("Failed to write OCR text %s: %v", out, err)
			result.Failed[name] = err.Error()
			continue
		}

		logger.L().Infof("Text extracted: image=%s, output=%s, chars=%d", name, out, len(text))
		result.Written = append(result.Written, out)
	}

	return result, nil
}
