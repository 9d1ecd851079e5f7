package log

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// String returns the upper-case level name used in log lines.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Category tags every line with the subsystem that produced it.
type Category string

const (
	CategoryNetwork Category = "NETWORK"
	CategoryError   Category = "ERROR"
	CategoryConfig  Category = "CONFIG"
	CategorySystem  Category = "SYSTEM"
	CategoryProcess Category = "PROCESS"
	CategoryUI      Category = "UI"
)

// Logger provides structured logging
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

// NewLogger creates a JSON-line logger writing to w. A nil writer means stderr.
func NewLogger(level Level, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	atom := zap.NewAtomicLevelAt(level.zapLevel())
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(time.RFC3339),
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), atom)
	return &Logger{z: zap.New(core), level: atom}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Debug logs a debug message
func (l *Logger) Debug(category Category, message string, fields ...zap.Field) {
	l.z.Debug(message, withCategory(category, fields)...)
}

// Info logs an info message
func (l *Logger) Info(category Category, message string, fields ...zap.Field) {
	l.z.Info(message, withCategory(category, fields)...)
}

// Warn logs a warning message
func (l *Logger) Warn(category Category, message string, fields ...zap.Field) {
	l.z.Warn(message, withCategory(category, fields)...)
}

// Error logs an error message
func (l *Logger) Error(category Category, message string, fields ...zap.Field) {
	l.z.Error(message, withCategory(category, fields)...)
}

// LogCheckResult logs the outcome of one node check.
func (l *Logger) LogCheckResult(node string, status string, responseTime time.Duration, err error) {
	fields := []zap.Field{
		zap.String("node", node),
		zap.String("status", status),
		zap.Int64("response_time_ms", responseTime.Milliseconds()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.Debug(CategoryNetwork, "node checked", fields...)
}

// LogConfigLoad logs a config load event
func (l *Logger) LogConfigLoad(success bool, path string, err error) {
	fields := []zap.Field{zap.String("path", path)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if success {
		l.Info(CategoryConfig, "config loaded", fields...)
	} else {
		l.Error(CategoryError, "config load failed", fields...)
	}
}

// LogError logs a general error
func (l *Logger) LogError(component string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("component", component))
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.Error(CategoryError, "error occurred", fields...)
}

// ParseLevel parses a log level string
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func withCategory(category Category, fields []zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("category", string(category)))
	return append(out, fields...)
}
