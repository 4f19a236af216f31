package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // 精简镜像中没有系统时区数据

	"github.com/joho/godotenv"
)

// OutputDateLayout 输出目录与目标文件使用的日期格式（dd-mm-yyyy）
const OutputDateLayout = "02-01-2006"

// 输出目录下各阶段使用的子目录
const (
	HighlightsDirName    = "Highlights"
	HighlightTextDirName = "Text_highlights"
	OrganizedTextDirName = "Organized_text"
	ReadingDocsDirName   = "To_read"
)

// Config 应用程序配置
type Config struct {
	TelegramToken        string // Telegram Bot 长期凭证
	TelegramServerURL    string // 自建 Bot API 服务地址（大文件下载需要）
	TelegramDebug        bool
	BotOwnerIDs          []int64 // 运行报告接收人
	MongoURI             string  // MongoDB连接URI
	MongoDBName          string  // MongoDB数据库名称
	MessageRetentionDays int     // 频道消息日志保留天数（过期自动删除）

	BaseDir       string // 输出根目录
	OutputDirName string // 本次运行输出目录名（默认当天日期）
	RetryCount    int    // 外部调度器重试次数，仅用于展示
	ChannelsFile  string // 频道清单 YAML 路径
	Location      *time.Location

	Run      RunConfig
	Upload   UploadConfig
	Email    EmailConfig
	OCR      OCRConfig
	Schedule ScheduleConfig
}

// RunConfig 下载阶段参数
type RunConfig struct {
	ExpectedNewspapers int // 0 表示按清单自动计算
	ChannelTimeout     time.Duration
	DownloadTimeout    time.Duration
	MessageBudget      int
	PageSize           int
	Pacing             time.Duration
	LooseMinFragments  int
}

// UploadConfig 云存储上传配置
type UploadConfig struct {
	Backend   string // s3 | minio
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Folder    string // 目标目录，空则使用日期目录
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Sender      string
	Password    string
	Receivers   []string
	SMTPHost    string
	SMTPPort    int
	SubjectBase string
}

// OCRConfig OCR 配置
type OCRConfig struct {
	TesseractPath string
	Language      string
}

// ScheduleConfig serve 模式下的每日运行时间
type ScheduleConfig struct {
	DailyAt       string // HH:MM
	MaxRetries    int
	RetryInterval time.Duration
}

// Load 从环境变量加载配置
// 工作目录中存在 .env 时先加载
func Load() (*Config, error) {
	_ = godotenv.Load()

	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "news_bot"
	}

	token := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN"))
	if token == "" {
		token = strings.TrimSpace(os.Getenv("TELEGRAM_SESSION_STRING"))
	}

	location, err := loadLocation(os.Getenv("TIMEZONE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramToken:     token,
		TelegramServerURL: strings.TrimSpace(os.Getenv("TELEGRAM_API_URL")),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDBName:       mongoDBName,
		BaseDir:           baseDir(),
		OutputDirName:     strings.TrimSpace(os.Getenv("OUTPUT_DIR_NAME")),
		ChannelsFile:      envOr("CHANNELS_FILE", "channels.yaml"),
		Location:          location,
	}

	// 解析BOT_OWNER_IDS
	ownerIDsStr := os.Getenv("BOT_OWNER_IDS")
	if ownerIDsStr != "" {
		cfg.BotOwnerIDs, err = parseOwnerIDs(ownerIDsStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse BOT_OWNER_IDS: %w", err)
		}
	}

	// 解析MESSAGE_RETENTION_DAYS（默认7天）
	cfg.MessageRetentionDays, err = intEnv("MESSAGE_RETENTION_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if cfg.MessageRetentionDays < 1 {
		return nil, fmt.Errorf("MESSAGE_RETENTION_DAYS must be >= 1, got %d", cfg.MessageRetentionDays)
	}

	if v := strings.TrimSpace(os.Getenv("TELEGRAM_DEBUG")); v != "" {
		if cfg.TelegramDebug, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("failed to parse TELEGRAM_DEBUG: %w", err)
		}
	}

	cfg.RetryCount, err = intEnv("RETRY_COUNT", 0)
	if err != nil {
		return nil, err
	}

	if cfg.Run, err = loadRunConfig(); err != nil {
		return nil, err
	}
	if cfg.Upload, err = loadUploadConfig(); err != nil {
		return nil, err
	}
	if cfg.Email, err = loadEmailConfig(); err != nil {
		return nil, err
	}

	cfg.OCR = OCRConfig{
		TesseractPath: envOr("TESSERACT_PATH", "tesseract"),
		Language:      envOr("TESSERACT_LANG", "eng"),
	}

	if cfg.Schedule, err = loadScheduleConfig(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// OutputDir 返回本次运行的输出目录
func (c *Config) OutputDir(now time.Time) string {
	name := c.OutputDirName
	if name == "" {
		name = now.In(c.Location).Format(OutputDateLayout)
	}
	return filepath.Join(c.BaseDir, name)
}

// HighlightsDir 要点图片目录
func (c *Config) HighlightsDir(now time.Time) string {
	return filepath.Join(c.OutputDir(now), HighlightsDirName)
}

// HighlightTextDir OCR 文本目录
func (c *Config) HighlightTextDir(now time.Time) string {
	return filepath.Join(c.HighlightsDir(now), HighlightTextDirName)
}

// OrganizedTextDir 整理后文本目录
func (c *Config) OrganizedTextDir(now time.Time) string {
	return filepath.Join(c.OutputDir(now), OrganizedTextDirName)
}

// ReadingDocsDir 阅读文档目录
func (c *Config) ReadingDocsDir(now time.Time) string {
	return filepath.Join(c.OutputDir(now), ReadingDocsDirName)
}

// Clock 解析 HH:MM
func (s ScheduleConfig) Clock() (int, int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(s.DailyAt))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid DAILY_RUN_AT %q: %w", s.DailyAt, err)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func loadRunConfig() (RunConfig, error) {
	var cfg RunConfig
	var err error

	if cfg.ExpectedNewspapers, err = intEnv("EXPECTED_NEWSPAPERS", 0); err != nil {
		return RunConfig{}, err
	}
	if cfg.ChannelTimeout, err = secondsEnv("CHANNEL_TIMEOUT_SECONDS", 300); err != nil {
		return RunConfig{}, err
	}
	if cfg.DownloadTimeout, err = secondsEnv("DOWNLOAD_TIMEOUT_SECONDS", 600); err != nil {
		return RunConfig{}, err
	}
	if cfg.MessageBudget, err = intEnv("SCAN_MESSAGE_BUDGET", 200); err != nil {
		return RunConfig{}, err
	}
	if cfg.PageSize, err = intEnv("SCAN_PAGE_SIZE", 50); err != nil {
		return RunConfig{}, err
	}
	if cfg.LooseMinFragments, err = intEnv("LOOSE_MIN_DATE_FRAGMENTS", 1); err != nil {
		return RunConfig{}, err
	}

	pacingMS, err := intEnv("SCAN_PACING_MS", 500)
	if err != nil {
		return RunConfig{}, err
	}
	cfg.Pacing = time.Duration(pacingMS) * time.Millisecond

	if cfg.MessageBudget < 1 || cfg.PageSize < 1 || cfg.PageSize > 100 {
		return RunConfig{}, fmt.Errorf("invalid scan bounds: budget=%d, page_size=%d", cfg.MessageBudget, cfg.PageSize)
	}
	if cfg.LooseMinFragments < 1 {
		return RunConfig{}, fmt.Errorf("LOOSE_MIN_DATE_FRAGMENTS must be >= 1, got %d", cfg.LooseMinFragments)
	}

	return cfg, nil
}

func loadScheduleConfig() (ScheduleConfig, error) {
	cfg := ScheduleConfig{DailyAt: envOr("DAILY_RUN_AT", "06:30")}
	if _, _, err := cfg.Clock(); err != nil {
		return ScheduleConfig{}, err
	}

	var err error
	if cfg.MaxRetries, err = intEnv("SCHEDULE_MAX_RETRIES", 2); err != nil {
		return ScheduleConfig{}, err
	}
	if cfg.MaxRetries < 0 {
		return ScheduleConfig{}, fmt.Errorf("SCHEDULE_MAX_RETRIES must be >= 0, got %d", cfg.MaxRetries)
	}

	minutes, err := intEnv("SCHEDULE_RETRY_MINUTES", 60)
	if err != nil {
		return ScheduleConfig{}, err
	}
	if minutes < 1 {
		return ScheduleConfig{}, fmt.Errorf("SCHEDULE_RETRY_MINUTES must be >= 1, got %d", minutes)
	}
	cfg.RetryInterval = time.Duration(minutes) * time.Minute

	return cfg, nil
}

func loadUploadConfig() (UploadConfig, error) {
	cfg := UploadConfig{
		Backend:   strings.ToLower(envOr("UPLOAD_BACKEND", "s3")),
		Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		Region:    envOr("S3_REGION", "us-east-1"),
		AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
		Bucket:    strings.TrimSpace(os.Getenv("S3_BUCKET")),
		Folder:    strings.TrimSpace(os.Getenv("UPLOAD_FOLDER")),
		UseSSL:    true,
	}

	if v := strings.TrimSpace(os.Getenv("S3_USE_SSL")); v != "" {
		useSSL, err := strconv.ParseBool(v)
		if err != nil {
			return UploadConfig{}, fmt.Errorf("failed to parse S3_USE_SSL: %w", err)
		}
		cfg.UseSSL = useSSL
	}

	switch cfg.Backend {
	case "s3", "minio":
	default:
		return UploadConfig{}, fmt.Errorf("unsupported UPLOAD_BACKEND %q", cfg.Backend)
	}

	return cfg, nil
}

func loadEmailConfig() (EmailConfig, error) {
	cfg := EmailConfig{
		Sender:      strings.TrimSpace(os.Getenv("EMAIL_SENDER")),
		Password:    os.Getenv("EMAIL_PASSWORD"),
		SMTPHost:    envOr("SMTP_HOST", "smtp.gmail.com"),
		SubjectBase: envOr("EMAIL_SUBJECT", "Daily News Articles"),
	}

	port, err := intEnv("SMTP_PORT", 465)
	if err != nil {
		return EmailConfig{}, err
	}
	cfg.SMTPPort = port

	if primary := strings.TrimSpace(os.Getenv("EMAIL_RECEIVER")); primary != "" {
		cfg.Receivers = append(cfg.Receivers, primary)
	}
	cfg.Receivers = append(cfg.Receivers, parseList(os.Getenv("ADDITIONAL_EMAIL_RECEIVERS"))...)

	return cfg, nil
}

// parseOwnerIDs 解析逗号分隔的用户ID字符串
// 支持格式: "123456789" 或 "123456789,987654321"
func parseOwnerIDs(s string) ([]int64, error) {
	parts := parseList(s)
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid owner ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// parseList 解析逗号分隔列表，忽略空项
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// baseDir GitHub Actions 下使用 GITHUB_WORKSPACE
func baseDir() string {
	if dir := strings.TrimSpace(os.Getenv("BASE_DIR")); dir != "" {
		return dir
	}
	if dir := strings.TrimSpace(os.Getenv("GITHUB_WORKSPACE")); dir != "" {
		return dir
	}
	return "."
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return n, nil
}

func secondsEnv(key string, def int) (time.Duration, error) {
	seconds, err := intEnv(key, def)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("invalid %s: %d", key, seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}
