package locator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// fakeSource 内存消息源，History 按 ID 倒序分页
type fakeSource struct {
	mu         sync.Mutex
	messages   []Message
	files      map[int64][]byte
	historyErr []error // 依次返回的错误，nil 表示正常
	cursors    []int64

	joinInviteErr error
	joinURLErr    error
	joins         []string

	downloadDelay time.Duration
}

func newFakeSource(messages ...Message) *fakeSource {
	sorted := append([]Message(nil), messages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	return &fakeSource{messages: sorted, files: make(map[int64][]byte)}
}

func (f *fakeSource) Authenticate(ctx context.Context) (string, error) { return "fake_bot", nil }

func (f *fakeSource) Resolve(ctx context.Context, ref string) (Entity, error) {
	return Entity{ID: 42, Ref: ref, Title: strings.TrimPrefix(ref, "@")}, nil
}

func (f *fakeSource) JoinByInvite(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, "invite:"+token)
	return f.joinInviteErr
}

func (f *fakeSource) JoinByURL(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, "url:"+url)
	return f.joinURLErr
}

func (f *fakeSource) History(ctx context.Context, entity Entity, before int64, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cursors = append(f.cursors, before)
	if len(f.historyErr) > 0 {
		err := f.historyErr[0]
		f.historyErr = f.historyErr[1:]
		if err != nil {
			return nil, err
		}
	}

	var page []Message
	for _, msg := range f.messages {
		if before != 0 && msg.ID >= before {
			continue
		}
		page = append(page, msg)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (f *fakeSource) Download(ctx context.Context, entity Entity, msg Message, w io.Writer, progress ProgressFunc) (int64, error) {
	data, ok := f.files[msg.ID]
	if !ok {
		return 0, ErrNoAttachment
	}

	var written int64
	for i := 0; i < len(data); i += 4 {
		if f.downloadDelay > 0 {
			select {
			case <-ctx.Done():
				return written, ctx.Err()
			case <-time.After(f.downloadDelay):
			}
		}
		end := i + 4
		if end > len(data) {
			end = len(data)
		}
		n, err := w.Write(data[i:end])
		written += int64(n)
		if err != nil {
			return written, err
		}
		if progress != nil {
			progress(written, int64(len(data)))
		}
	}
	return written, nil
}

// noiseMessages 生成 ID 从 high 递减的无关文件消息
func noiseMessages(high int64, count int) []Message {
	out := make([]Message, 0, count)
	for i := 0; i < count; i++ {
		id := high - int64(i)
		out = append(out, Message{ID: id, FileName: fmt.Sprintf("notes_%d.pdf", id), HasMedia: true})
	}
	return out
}

var errFlaky = errors.New("connection reset")
