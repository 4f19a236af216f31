package locator

import (
	"context"
	"io"
	"time"
)

// Entity 已解析的可寻址频道
type Entity struct {
	ID    int64
	Ref   string // 配置中的频道引用（@handle 或邀请链接）
	Title string
}

// Message 频道历史中的一条消息
type Message struct {
	ID       int64
	FileName string // 附件文件名，无附件或无文件名时为空
	FileSize int64
	FileRef  string // 消息源内部的文件句柄
	Text     string // 正文或媒体说明文字
	HasMedia bool
	SentAt   time.Time
}

// Candidate 扫描过程中观察到的候选项
type Candidate struct {
	MessageID int64
	Name      string
	Text      string
	HasMedia  bool
}

// Candidate 返回消息的候选视图
func (m Message) Candidate() Candidate {
	return Candidate{
		MessageID: m.ID,
		Name:      m.FileName,
		Text:      m.Text,
		HasMedia:  m.HasMedia,
	}
}

// ProgressFunc 传输进度回调，total 未知时为 0
type ProgressFunc func(done, total int64)

// Source 消息源
type Source interface {
	// Authenticate 使用长期凭证登录，返回账号名
	Authenticate(ctx context.Context) (string, error)

	// Resolve 将频道引用解析为可寻址实体
	Resolve(ctx context.Context, ref string) (Entity, error)

	// JoinByInvite 通过邀请 token 加入私有频道
	JoinByInvite(ctx context.Context, token string) error

	// JoinByURL 通过完整邀请链接加入私有频道
	JoinByURL(ctx context.Context, url string) error

	// History 返回 before 之前的最新一页消息（按 ID 倒序），before 为 0 表示从最新开始
	History(ctx context.Context, entity Entity, before int64, limit int) ([]Message, error)

	// Download 将附件写入 w，返回写入字节数
	Download(ctx context.Context, entity Entity, msg Message, w io.Writer, progress ProgressFunc) (int64, error)
}
