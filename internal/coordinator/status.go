package coordinator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"news_bot/internal/catalog"
	"news_bot/internal/download"
)

// StatusFileName 运行状态文件名，写入当天输出目录
const StatusFileName = "download_status.json"

// ChannelState 频道处理状态
type ChannelState string

const (
	StatePending  ChannelState = "pending"
	StateScanning ChannelState = "scanning"
	StateMatched  ChannelState = "matched"
	StateNotFound ChannelState = "not-found"
	StateTimedOut ChannelState = "timed-out"
	StateErrored  ChannelState = "errored"
)

// Terminal 是否为终态
func (s ChannelState) Terminal() bool {
	switch s {
	case StateMatched, StateNotFound, StateTimedOut, StateErrored:
		return true
	}
	return false
}

// ChannelReport 单个频道的处理结果
type ChannelReport struct {
	Ref     string             `json:"ref"`
	Name    string             `json:"name"`
	Kind    catalog.Kind       `json:"kind"`
	State   ChannelState       `json:"state"`
	Error   string             `json:"error,omitempty"`
	Found   []string           `json:"found,omitempty"`
	Missing []string           `json:"missing,omitempty"`
	Records []*download.Record `json:"records,omitempty"`
}

// RunStatus 一次运行的汇总，运行结束时写入状态文件
type RunStatus struct {
	RunID      string    `json:"run_id"`
	Date       string    `json:"date"`
	RetryCount int       `json:"retry_count"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Newspapers map[string]bool     `json:"newspapers"`
	Highlights map[string][]string `json:"highlights"`
	Channels   []*ChannelReport    `json:"channels"`

	NewspaperCount          int  `json:"newspaper_count"`
	ExpectedCount           int  `json:"expected_newspaper_count"`
	AllNewspapersDownloaded bool `json:"all_newspapers_downloaded"`
}

func newRunStatus(runID, date string, retryCount, expected int) *RunStatus {
	return &RunStatus{
		RunID:         runID,
		Date:          date,
		RetryCount:    retryCount,
		StartedAt:     time.Now(),
		Newspapers:    make(map[string]bool),
		Highlights:    make(map[string][]string),
		ExpectedCount: expected,
	}
}

// RecordNewspaper 记录一份报纸的下载结果，已成功的不会被覆盖
func (s *RunStatus) RecordNewspaper(name string, ok bool) {
	if s.Newspapers[name] {
		return
	}
	s.Newspapers[name] = ok
}

// RecordHighlight 记录一个要点图片
func (s *RunStatus) RecordHighlight(channel, item string) {
	for _, existing := range s.Highlights[channel] {
		if existing == item {
			return
		}
	}
	s.Highlights[channel] = append(s.Highlights[channel], item)
}

// Finalize 计算报纸数量与成功标记
func (s *RunStatus) Finalize() {
	count := 0
	for _, ok := range s.Newspapers {
		if ok {
			count++
		}
	}
	s.NewspaperCount = count
	s.AllNewspapersDownloaded = count >= s.ExpectedCount
	s.FinishedAt = time.Now()
}

// Success 报纸数量是否达到预期
func (s *RunStatus) Success() bool {
	return s != nil && s.AllNewspapersDownloaded
}

// MissingNewspapers 未下载的报纸名，按名称排序
func (s *RunStatus) MissingNewspapers() []string {
	var missing []string
	for name, ok := range s.Newspapers {
		if !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// WriteStatus 将状态写入 dir/download_status.json
func WriteStatus(dir string, status *RunStatus) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create status dir: %w", err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run status: %w", err)
	}

	path := filepath.Join(dir, StatusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write run status: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write run status: %w", err)
	}
	return path, nil
}

// ReadStatus 读取状态文件
func ReadStatus(path string) (*RunStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run status: %w", err)
	}
	var status RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode run status %s: %w", path, err)
	}
	return &status, nil
}
