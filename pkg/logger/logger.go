package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例，Init 之前为 nil，此时输出走 logrus 标准实例
	Logger *logrus.Logger

	logMu          sync.Mutex
	currentLogFile string
	fileWriter     *lumberjack.Logger // 重新 Init 时关闭
)

// Config 日志配置
type Config struct {
	Level      string // debug / info / warn / error，无法识别时按 info
	OutputFile string // 为空则只输出到控制台
	MaxSize    int    // 单个文件上限（MB）
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
	JSON       bool // JSON 行，便于采集
	Quiet      bool // 有日志文件时不再输出到控制台
}

func newFormatter(cfg Config) logrus.Formatter {
	if cfg.JSON {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05.000",
		ForceColors:     true,
	}
}

// openOutput 组装输出目标；旧的文件输出在这里关闭
func openOutput(cfg Config) (io.Writer, error) {
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
		currentLogFile = ""
	}

	var writers []io.Writer
	if !cfg.Quiet || cfg.OutputFile == "" {
		writers = append(writers, os.Stdout)
	}
	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
			return nil, err
		}
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, fileWriter)
		currentLogFile = cfg.OutputFile
	}
	return io.MultiWriter(writers...), nil
}

// Init 初始化日志系统，可以重复调用（例如重新加载配置）
func Init(cfg Config) error {
	logMu.Lock()
	defer logMu.Unlock()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	out, err := openOutput(cfg)
	if err != nil {
		return err
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(newFormatter(cfg))
	l.SetOutput(out)

	// 依赖库里直接用 logrus.WithField 的日志也写到同一处
	logrus.SetOutput(out)
	logrus.SetLevel(level)
	logrus.SetFormatter(newFormatter(cfg))

	Logger = l
	return nil
}

// Rotate 立即切换到新的日志文件（收到 SIGHUP 时）
func Rotate() error {
	logMu.Lock()
	defer logMu.Unlock()
	if fileWriter == nil {
		return nil
	}
	return fileWriter.Rotate()
}

// GetCurrentLogFile 当前日志文件路径，只输出到控制台时为空
func GetCurrentLogFile() string {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogFile
}

func std() *logrus.Logger {
	if l := Logger; l != nil {
		return l
	}
	return logrus.StandardLogger()
}

// Component 带 component 字段的日志入口，各模块用它区分来源
func Component(name string) *logrus.Entry {
	return std().WithField("component", name)
}

func WithField(key string, value any) *logrus.Entry {
	return std().WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return std().WithFields(fields)
}

func Debugf(format string, args ...any) { std().Debugf(format, args...) }
func Info(args ...any)                  { std().Info(args...) }
func Infof(format string, args ...any)  { std().Infof(format, args...) }
func Warnf(format string, args ...any)  { std().Warnf(format, args...) }
func Errorf(format string, args ...any) { std().Errorf(format, args...) }
