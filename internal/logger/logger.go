package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置，由 config.LogConfig 实现
type LogConfig interface {
	GetLevel() string
	GetOutput() string
	GetFile() string
}

// Logger 自定义日志器，printf 风格
type Logger struct {
	sugar *zap.SugaredLogger
}

// RotationConfig 日志文件轮转配置
type RotationConfig struct {
	Filename   string // 日志文件路径
	MaxSize    int    // 每个日志文件的最大大小（MB）
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留日志文件的天数
	Compress   bool   // 是否压缩旧日志文件
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(zapcore.InfoLevel, os.Stdout))
}

// Init 根据配置创建并替换默认日志器
func Init(cfg LogConfig) error {
	level := ParseLevel(cfg.GetLevel())

	var w io.Writer
	switch output := strings.ToLower(cfg.GetOutput()); output {
	case "stdout", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	case "file":
		writer, err := rotatingWriter(RotationConfig{Filename: cfg.GetFile(), Compress: true})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		w = writer
	default:
		return fmt.Errorf("unsupported log output %q", output)
	}

	SetDefaultLogger(New(level, w))
	return nil
}

// New 创建写入 w 的 JSON 日志器，debug 级别时附带调用栈
func New(level zapcore.Level, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(2)}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return &Logger{sugar: zap.New(core, opts...).Sugar()}
}

// rotatingWriter 按大小轮转的日志文件
func rotatingWriter(config RotationConfig) (io.Writer, error) {
	if config.Filename == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if config.MaxSize == 0 {
		config.MaxSize = 100
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 3
	}
	if config.MaxAge == 0 {
		config.MaxAge = 28
	}
	return &lumberjack.Logger{
		Filename:   config.Filename,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}, nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
	cfg.CallerKey = "caller"
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.MessageKey = "message"
	return cfg
}

// ParseLevel 解析日志级别字符串，无法识别时为 info
func ParseLevel(level string) zapcore.Level {
	if strings.EqualFold(level, "warning") {
		return zapcore.WarnLevel
	}
	parsed, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

func (l *Logger) Fatal(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }

// Sync 刷新缓冲
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// SetDefaultLogger 替换默认日志器，旧日志器先刷新
func SetDefaultLogger(l *Logger) {
	if old := defaultLogger.Swap(l); old != nil {
		old.Sync()
	}
}

func Debug(format string, args ...interface{}) { defaultLogger.Load().Debug(format, args...) }

func Info(format string, args ...interface{}) { defaultLogger.Load().Info(format, args...) }

func Warn(format string, args ...interface{}) { defaultLogger.Load().Warn(format, args...) }

func Error(format string, args ...interface{}) { defaultLogger.Load().Error(format, args...) }

func Fatal(format string, args ...interface{}) { defaultLogger.Load().Fatal(format, args...) }

func Sync() { defaultLogger.Load().Sync() }
