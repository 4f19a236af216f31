package logger

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 日志文件轮转参数
const (
	fileMaxSizeMB  = 20
	fileMaxBackups = 5
	fileMaxAgeDays = 14
)

// Init configures the global logrus logger.
// It is safe to call multiple times; later calls overwrite previous settings.
// When LOG_FILE is set, output is duplicated into a rotating file.
func Init() {
	log.SetOutput(output(os.Getenv("LOG_FILE")))
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	if lvl, err := log.ParseLevel(levelStr); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// output 构建日志输出，文件目录创建失败时只写 stdout
func output(filePath string) io.Writer {
	if filePath == "" {
		return os.Stdout
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return os.Stdout
	}

	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
		LocalTime:  true,
	})
}

// L returns the global logger for convenience.
func L() *log.Logger { return log.StandardLogger() }
