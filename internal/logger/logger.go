package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/banquiz-board/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	once    sync.Once
	root    *zap.Logger
	level   = zap.NewAtomicLevel()
	modules = map[string]*zap.Logger{}
)

// sink 一个输出目标及其最低级别（nil 表示跟随全局级别）
type sink struct {
	ws    zapcore.WriteSyncer
	floor zapcore.LevelEnabler
}

// Init 初始化全局日志器，只生效一次
func Init(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		var built *zap.Logger
		if built, err = Build(cfg); err == nil {
			mu.Lock()
			root = built
			mu.Unlock()
		}
	})
	return err
}

// Build 按配置构建日志器，并重建各模块日志器
//
// 模块日志器与全局日志器写入相同的目标，只是级别独立；
// error.log 只收 error 及以上。
func Build(cfg *config.LogConfig) (*zap.Logger, error) {
	level.SetLevel(parseLevel(cfg.Level))

	sinks, err := openSinks(cfg)
	if err != nil {
		return nil, err
	}
	encoder := newEncoder(cfg.Format)

	built := zap.New(tee(encoder, sinks, level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	named := make(map[string]*zap.Logger, len(cfg.Modules))
	for module, lvl := range cfg.Modules {
		named[module] = zap.New(tee(encoder, sinks, parseLevel(lvl)), zap.AddCaller()).Named(module)
	}

	mu.Lock()
	modules = named
	mu.Unlock()

	return built, nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "module",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// openSinks 根据 output 打开 stdout 和/或轮转文件
func openSinks(cfg *config.LogConfig) ([]sink, error) {
	output := strings.ToLower(cfg.Output)
	var sinks []sink

	if output == "" || output == "stdout" || output == "both" {
		sinks = append(sinks, sink{ws: zapcore.Lock(os.Stdout)})
	}

	if output == "file" || output == "both" {
		if err := os.MkdirAll(cfg.File.Path, 0755); err != nil {
			return nil, err
		}
		sinks = append(sinks,
			sink{ws: zapcore.AddSync(rotating(cfg.File, cfg.File.Filename))},
			sink{ws: zapcore.AddSync(rotating(cfg.File, "error.log")), floor: zapcore.ErrorLevel},
		)
	}
	return sinks, nil
}

func rotating(fc config.LogFileConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(fc.Path, name),
		MaxSize:    fc.MaxSize, // MB
		MaxAge:     fc.MaxAge,  // 天
		MaxBackups: fc.MaxBackups,
		Compress:   fc.Compress,
	}
}

func tee(enc zapcore.Encoder, sinks []sink, lvl zapcore.LevelEnabler) zapcore.Core {
	cores := make([]zapcore.Core, 0, len(sinks))
	for _, s := range sinks {
		enabler := lvl
		if s.floor != nil {
			floor := s.floor
			enabler = zap.LevelEnablerFunc(func(l zapcore.Level) bool {
				return lvl.Enabled(l) && floor.Enabled(l)
			})
		}
		cores = append(cores, zapcore.NewCore(enc, s.ws, enabler))
	}
	return zapcore.NewTee(cores...)
}

// parseLevel 未知级别按 info 处理
func parseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取全局日志器，未初始化时返回开发模式日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return root
}

// WithModule 获取模块日志器；未单独配置级别的模块沿用全局日志器
func WithModule(module string) *zap.Logger {
	mu.RLock()
	l, ok := modules[module]
	mu.RUnlock()
	if ok {
		return l
	}
	return GetLogger().Named(module)
}

// Sync 刷新缓冲
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return nil
	}
	return root.Sync()
}

func Info(msg string, fields ...zap.Field)  { GetLogger().Info(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { GetLogger().Fatal(msg, fields...) }

// LogRequest 访问日志；5xx 记为 warn
func LogRequest(requestID, method, path string, status int, latency time.Duration, clientIP string) {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.String("client_ip", clientIP),
	}
	l := WithModule("http")
	if status >= 500 {
		l.Warn("request", fields...)
		return
	}
	l.Info("request", fields...)
}

// LogPanic 记录被恢复的 panic
func LogPanic(requestID string, recovered interface{}, stack []byte) {
	GetLogger().Error("panic recovered",
		zap.String("request_id", requestID),
		zap.Any("panic", recovered),
		zap.ByteString("stack", stack),
	)
}

// LogWebSocketMessage 调试用：记录会话收发的消息类型
func LogWebSocketMessage(sessionID, direction, messageType string) {
	WithModule("websocket").Debug("ws_message",
		zap.String("session_id", sessionID),
		zap.String("direction", direction),
		zap.String("type", messageType),
	)
}

// SetLevel 热更新全局级别
func SetLevel(s string) {
	level.SetLevel(parseLevel(s))
}

// Level 当前全局级别
func Level() zapcore.Level {
	return level.Level()
}
