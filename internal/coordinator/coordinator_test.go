package coordinator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"news_bot/internal/catalog"
	"news_bot/internal/download"
	"news_bot/internal/locator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runDate = time.Date(2024, time.June, 5, 6, 30, 0, 0, time.UTC)

const catalogYAML = `
channels:
  - username: "@csaccoep"
    type: newspaper
    files:
      - name: Indian_Express
        source_format: "INDIAN EXPRESS HD Delhi {date}.pdf"
        target_format: "Indian_Express_{date}.pdf"
        date_format: "%d~%m~%Y"
        target_date_format: "%d-%m-%Y"
      - name: Indian_Express_UPSC
        source_format: "INDIAN EXPRESS UPSC IAS EDITION HD {date}.pdf"
        target_format: "Indian_Express_UPSC_{date}.pdf"
        date_format: "%d~%m~%Y"
        target_date_format: "%d-%m-%Y"
  - username: "@the_hindu_newspaper_free_pdf"
    type: newspaper
    files:
      - name: The_Hindu_Delhi
        source_format: "TH Delhi {date}.pdf"
        target_format: "The_Hindu_Delhi_{date}.pdf"
        date_format: "%d--%m"
        target_date_format: "%d-%m-%Y"
        spacing_variant: true
  - username: "@vajiramandraviofficial"
    type: highlights
    patterns:
      - name: Indian_Express
        text_pattern: "#ToBeReadVajiram in The Indian Express: {date}"
        target_format: "Indian_Express_{date}.jpg"
        date_format: "%d/%m/%Y"
        target_date_format: "%d-%m-%Y"
`

// channelSource 按频道引用保存消息的内存消息源
type channelSource struct {
	mu        sync.Mutex
	ids       map[string]int64
	history   map[int64][]locator.Message
	files     map[int64][]byte
	blockRefs map[string]bool
	joinErr   error
	resolved  []string
}

func newChannelSource() *channelSource {
	return &channelSource{
		ids:       make(map[string]int64),
		history:   make(map[int64][]locator.Message),
		files:     make(map[int64][]byte),
		blockRefs: make(map[string]bool),
	}
}

func (s *channelSource) post(ref string, msg locator.Message, data []byte) {
	id, ok := s.ids[ref]
	if !ok {
		id = int64(len(s.ids) + 1)
		s.ids[ref] = id
	}
	s.history[id] = append(s.history[id], msg)
	sort.Slice(s.history[id], func(i, j int) bool { return s.history[id][i].ID > s.history[id][j].ID })
	if data != nil {
		s.files[id*1_000_000+msg.ID] = data
	}
}

func (s *channelSource) Authenticate(ctx context.Context) (string, error) { return "bot", nil }

func (s *channelSource) Resolve(ctx context.Context, ref string) (locator.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, ref)

	id, ok := s.ids[ref]
	if !ok {
		id = int64(1000 + len(s.resolved))
		s.ids[ref] = id
	}
	return locator.Entity{ID: id, Ref: ref}, nil
}

func (s *channelSource) JoinByInvite(ctx context.Context, token string) error { return s.joinErr }
func (s *channelSource) JoinByURL(ctx context.Context, url string) error      { return s.joinErr }

func (s *channelSource) History(ctx context.Context, entity locator.Entity, before int64, limit int) ([]locator.Message, error) {
	if s.blockRefs[entity.Ref] {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	var page []locator.Message
	for _, msg := range s.history[entity.ID] {
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

func (s *channelSource) Download(ctx context.Context, entity locator.Entity, msg locator.Message, w io.Writer, progress locator.ProgressFunc) (int64, error) {
	data, ok := s.files[entity.ID*1_000_000+msg.ID]
	if !ok {
		return 0, locator.ErrNoAttachment
	}
	n, err := w.Write(data)
	return int64(n), err
}

func noise(ref string, s *channelSource, high int64, count int) {
	for i := 0; i < count; i++ {
		id := high - int64(i)
		s.post(ref, locator.Message{ID: id, FileName: fmt.Sprintf("misc_%d.pdf", id), HasMedia: true}, nil)
	}
}

func loadChannels(t *testing.T, yaml string) []catalog.Channel {
	t.Helper()
	cat, err := catalog.Parse([]byte(yaml), runDate)
	require.NoError(t, err)
	return cat.Channels
}

func newTestCoordinator(src locator.Source, outDir string, opts Options) *Coordinator {
	scanner := locator.NewScanner(src, locator.WithPacer(locator.NewPacer(0)), locator.WithRetry(1, 0))
	opts.OutputDir = outDir
	opts.Now = runDate
	return New(src, scanner, download.NewOrchestrator(src, time.Second), opts)
}

func TestRunAllNewspapersFound(t *testing.T) {
	src := newChannelSource()

	// Indian Express 只以去零日期出现在第二页
	noise("@csaccoep", src, 400, 60)
	src.post("@csaccoep", locator.Message{ID: 300, FileName: "INDIAN EXPRESS HD Delhi 5~6~2024.pdf", FileRef: "ie", HasMedia: true}, []byte("%PDF-IE"))
	src.post("@csaccoep", locator.Message{ID: 299, FileName: "INDIAN EXPRESS UPSC IAS EDITION HD 05~06~2024.pdf", HasMedia: true}, []byte("%PDF-UPSC"))
	src.post("@the_hindu_newspaper_free_pdf", locator.Message{ID: 10, FileName: "TH Delhi05--06.pdf", HasMedia: true}, []byte("%PDF-TH"))
	src.post("@vajiramandraviofficial", locator.Message{ID: 77, Text: "#ToBeReadVajiram in The Indian Express: 05/06/2024\n(Delhi edition e-paper)", HasMedia: true}, []byte("JPEG"))

	outDir := filepath.Join(t.TempDir(), "05-06-2024")
	status := newTestCoordinator(src, outDir, Options{}).Run(context.Background(), loadChannels(t, catalogYAML))

	assert.True(t, status.AllNewspapersDownloaded)
	assert.Equal(t, 3, status.NewspaperCount)
	assert.Equal(t, 3, status.ExpectedCount)
	assert.Equal(t, "05-06-2024", status.Date)
	assert.NotEmpty(t, status.RunID)
	assert.Equal(t, []string{"Indian_Express"}, status.Highlights["@vajiramandraviofficial"])

	data, err := os.ReadFile(filepath.Join(outDir, "Indian_Express_05-06-2024.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-IE", string(data))
	assert.FileExists(t, filepath.Join(outDir, "The_Hindu_Delhi_05-06-2024.pdf"))
	assert.FileExists(t, filepath.Join(outDir, "Highlights", "Indian_Express_05-06-2024.jpg"))

	for _, report := range status.Channels {
		assert.Equal(t, StateMatched, report.State, report.Ref)
		assert.True(t, report.State.Terminal())
	}
}

func TestRunPartialIsFailure(t *testing.T) {
	src := newChannelSource()
	src.post("@csaccoep", locator.Message{ID: 5, FileName: "INDIAN EXPRESS HD Delhi 05~06~2024.pdf", HasMedia: true}, []byte("a"))
	src.post("@csaccoep", locator.Message{ID: 4, FileName: "INDIAN EXPRESS UPSC IAS EDITION HD 05~06~2024.pdf", HasMedia: true}, []byte("b"))
	// The Hindu 只有昨天的
	src.post("@the_hindu_newspaper_free_pdf", locator.Message{ID: 9, FileName: "TH Delhi 04--06.pdf", HasMedia: true}, []byte("c"))

	outDir := t.TempDir()
	status := newTestCoordinator(src, outDir, Options{}).Run(context.Background(), loadChannels(t, catalogYAML))

	assert.False(t, status.AllNewspapersDownloaded)
	assert.Equal(t, 2, status.NewspaperCount)
	assert.Equal(t, []string{"The_Hindu_Delhi"}, status.MissingNewspapers())

	states := map[string]ChannelState{}
	for _, report := range status.Channels {
		states[report.Ref] = report.State
	}
	assert.Equal(t, StateMatched, states["@csaccoep"])
	assert.Equal(t, StateNotFound, states["@the_hindu_newspaper_free_pdf"])
	// 要点缺失不影响结果
	assert.Equal(t, StateNotFound, states["@vajiramandraviofficial"])
	assert.Empty(t, status.Highlights)

	path, err := WriteStatus(outDir, status)
	require.NoError(t, err)
	read, err := ReadStatus(path)
	require.NoError(t, err)
	assert.False(t, read.AllNewspapersDownloaded)
	assert.Equal(t, map[string]bool{"Indian_Express": true, "Indian_Express_UPSC": true, "The_Hindu_Delhi": false}, read.Newspapers)
	assert.Equal(t, 3, read.ExpectedCount)
}

func TestRunExpectedCountOverride(t *testing.T) {
	src := newChannelSource()
	src.post("@csaccoep", locator.Message{ID: 5, FileName: "INDIAN EXPRESS HD Delhi 05~06~2024.pdf", HasMedia: true}, []byte("a"))
	src.post("@csaccoep", locator.Message{ID: 4, FileName: "INDIAN EXPRESS UPSC IAS EDITION HD 05~06~2024.pdf", HasMedia: true}, []byte("b"))

	status := newTestCoordinator(src, t.TempDir(), Options{ExpectedCount: 2, RetryCount: 1}).
		Run(context.Background(), loadChannels(t, catalogYAML))

	assert.True(t, status.Success())
	assert.Equal(t, 1, status.RetryCount)
}

func TestRunResumesBelowFailedDownload(t *testing.T) {
	src := newChannelSource()
	src.post("@csaccoep", locator.Message{ID: 5, FileName: "INDIAN EXPRESS HD Delhi 05~06~2024.pdf", HasMedia: true}, []byte("a"))
	src.post("@csaccoep", locator.Message{ID: 4, FileName: "INDIAN EXPRESS UPSC IAS EDITION HD 05~06~2024.pdf", HasMedia: true}, []byte("b"))
	// 最新的一份没有附件数据，下载失败
	src.post("@the_hindu_newspaper_free_pdf", locator.Message{ID: 30, FileName: "TH Delhi 05--06.pdf", HasMedia: true}, nil)
	src.post("@the_hindu_newspaper_free_pdf", locator.Message{ID: 20, FileName: "misc.pdf", HasMedia: true}, nil)
	src.post("@the_hindu_newspaper_free_pdf", locator.Message{ID: 12, FileName: "TH Delhi 05--06.pdf", HasMedia: true}, []byte("%PDF-TH"))

	outDir := t.TempDir()
	status := newTestCoordinator(src, outDir, Options{}).Run(context.Background(), loadChannels(t, catalogYAML))

	assert.True(t, status.AllNewspapersDownloaded)
	data, err := os.ReadFile(filepath.Join(outDir, "The_Hindu_Delhi_05-06-2024.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-TH", string(data))

	for _, report := range status.Channels {
		if report.Ref != "@the_hindu_newspaper_free_pdf" {
			continue
		}
		assert.Equal(t, StateMatched, report.State)
		require.Len(t, report.Records, 2)
		assert.Equal(t, download.OutcomeError, report.Records[0].Outcome)
		assert.Equal(t, int64(30), report.Records[0].MessageID)
		assert.True(t, report.Records[1].OK())
		assert.Equal(t, int64(12), report.Records[1].MessageID)
	}
}

func TestRunStopsResumingAfterMaxAttempts(t *testing.T) {
	src := newChannelSource()
	for id := int64(10); id > 10-MaxMatchAttempts-1; id-- {
		src.post("@the_hindu_newspaper_free_pdf", locator.Message{ID: id, FileName: "TH Delhi 05--06.pdf", HasMedia: true}, nil)
	}

	status := newTestCoordinator(src, t.TempDir(), Options{}).Run(context.Background(), loadChannels(t, catalogYAML))

	assert.False(t, status.AllNewspapersDownloaded)
	for _, report := range status.Channels {
		if report.Ref == "@the_hindu_newspaper_free_pdf" {
			assert.Len(t, report.Records, MaxMatchAttempts)
			assert.Equal(t, StateNotFound, report.State)
		}
	}
}

func TestRunPrivateJoinFailureIsChannelError(t *testing.T) {
	const yaml = `
channels:
  - username: "https://t.me/+Bu7senHpQdhlODg1"
    type: newspaper
    files:
      - source_format: "THE HINDU UPSC IAS EDITION HD {date}.pdf"
        target_format: "The_Hindu_UPSC_{date}.pdf"
        date_format: "%d~%m~%Y"
        target_date_format: "%d-%m-%Y"
  - username: "@csaccoep"
    type: newspaper
    files:
      - source_format: "INDIAN EXPRESS HD Delhi {date}.pdf"
        target_format: "Indian_Express_{date}.pdf"
        date_format: "%d~%m~%Y"
        target_date_format: "%d-%m-%Y"
`
	src := newChannelSource()
	src.joinErr = locator.ErrAccessDenied
	src.post("@csaccoep", locator.Message{ID: 1, FileName: "INDIAN EXPRESS HD Delhi 05~06~2024.pdf", HasMedia: true}, []byte("a"))

	status := newTestCoordinator(src, t.TempDir(), Options{}).Run(context.Background(), loadChannels(t, yaml))

	require.Len(t, status.Channels, 2)
	assert.Equal(t, StateErrored, status.Channels[0].State)
	assert.Contains(t, status.Channels[0].Error, "access denied")
	assert.Equal(t, StateMatched, status.Channels[1].State)
	assert.Equal(t, 1, status.NewspaperCount)
	assert.False(t, status.AllNewspapersDownloaded)
	assert.Equal(t, []string{"The_Hindu_UPSC"}, status.MissingNewspapers())
}

func TestRunPrivateChannelUsesLooseMatch(t *testing.T) {
	const yaml = `
channels:
  - username: "https://t.me/+Bu7senHpQdhlODg1"
    type: newspaper
    files:
      - source_format: "THE HINDU UPSC IAS EDITION HD {date}.pdf"
        target_format: "The_Hindu_UPSC_{date}.pdf"
        date_format: "%d~%m~%Y"
        target_date_format: "%d-%m-%Y"
`
	src := newChannelSource()
	src.post("https://t.me/+Bu7senHpQdhlODg1", locator.Message{ID: 3, FileName: "The Hindu UPSC IAS Edition HD 05-06-2024.pdf", HasMedia: true}, []byte("a"))

	outDir := t.TempDir()
	status := newTestCoordinator(src, outDir, Options{}).Run(context.Background(), loadChannels(t, yaml))

	assert.True(t, status.Success())
	assert.FileExists(t, filepath.Join(outDir, "The_Hindu_UPSC_05-06-2024.pdf"))
}

func TestRunChannelTimeout(t *testing.T) {
	src := newChannelSource()
	src.blockRefs["@csaccoep"] = true
	src.post("@the_hindu_newspaper_free_pdf", locator.Message{ID: 10, FileName: "TH Delhi 05--06.pdf", HasMedia: true}, []byte("th"))

	start := time.Now()
	status := newTestCoordinator(src, t.TempDir(), Options{ChannelTimeout: 50 * time.Millisecond}).
		Run(context.Background(), loadChannels(t, catalogYAML))

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateTimedOut, status.Channels[0].State)
	assert.Equal(t, StateMatched, status.Channels[1].State)
	assert.Equal(t, 1, status.NewspaperCount)
	assert.False(t, status.Success())
}

func TestRunParentCancelled(t *testing.T) {
	src := newChannelSource()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := newTestCoordinator(src, t.TempDir(), Options{}).Run(ctx, loadChannels(t, catalogYAML))

	for _, report := range status.Channels {
		assert.Equal(t, StateErrored, report.State)
	}
	assert.Empty(t, src.resolved)
	assert.False(t, status.Success())
}

func TestRecordNewspaperKeepsSuccess(t *testing.T) {
	status := newRunStatus("id", "05-06-2024", 0, 1)
	status.RecordNewspaper("The_Hindu", true)
	status.RecordNewspaper("The_Hindu", false)
	status.RecordHighlight("@v", "a")
	status.RecordHighlight("@v", "a")
	status.Finalize()

	assert.True(t, status.Newspapers["The_Hindu"])
	assert.Equal(t, []string{"a"}, status.Highlights["@v"])
	assert.True(t, status.AllNewspapersDownloaded)
}
