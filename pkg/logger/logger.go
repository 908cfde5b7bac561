package logger

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RequestIDKey 与 pkg/common.CtxKeyRequestID 保持一致（这里不能反向 import common）
const RequestIDKey = "request_id"

// 全局 Logger 实例；Init 之前是 Nop，库代码和测试不会因为 nil 崩溃
var Log = zap.NewNop()

var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// FileConfig 文件输出和滚动策略，Path 为空表示不写文件
type FileConfig struct {
	Path       string
	MaxSizeMB  int  // 单个文件上限，超过就滚动
	MaxAgeDays int  // 旧文件保留天数，0 不按天清理
	MaxBackups int  // 旧文件保留个数，0 不按个数清理
	Compress   bool // 旧文件 gzip
}

// Init 初始化日志组件
// serviceName: 当前服务的名称 (例如 "market-data")
// lvl: 日志级别 (debug, info, warn, error)
func Init(serviceName string, lvl string) {
	InitWithFile(serviceName, lvl, FileConfig{})
}

// InitWithFile 初始化日志组件，同时写控制台和滚动文件；fc.Path 为空时只写控制台
func InitWithFile(serviceName string, lvl string, fc FileConfig) {
	SetLevel(lvl)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	writeSyncers := []zapcore.WriteSyncer{
		zapcore.AddSync(os.Stdout),
	}

	if fc.Path != "" {
		// lumberjack 首次写入时才建目录和文件
		writeSyncers = append(writeSyncers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   fc.Path,
			MaxSize:    fc.MaxSizeMB,
			MaxAge:     fc.MaxAgeDays,
			MaxBackups: fc.MaxBackups,
			Compress:   fc.Compress,
		}))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writeSyncers...),
		level,
	)

	// AddCallerSkip(1)：跳过本包的封装函数，行号指向调用方
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", serviceName))
}

// SetLevel 动态调整日志级别（配置热更新时调用），非法值回落到 info
func SetLevel(lvl string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(lvl)); err != nil {
		l = zap.InfoLevel
	}
	level.SetLevel(l)
}

// Level 当前日志级别
func Level() zapcore.Level { return level.Level() }

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Info(msg, withContext(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Error(msg, withContext(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Warn(msg, withContext(ctx, fields)...)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Debug(msg, withContext(ctx, fields)...)
}

// Fatal 会调用 os.Exit
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Fatal(msg, withContext(ctx, fields)...)
}

// withContext 从 ctx 里取 request_id 和 OTel trace_id 追加到 fields
func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if rid, ok := ctx.Value(RequestIDKey).(string); ok && rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	return fields
}

// Sync 刷新缓冲区 (main 里 defer 调用)
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
