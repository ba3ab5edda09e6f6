// pkg/logger/logger.go
package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level controls the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

// Logger is the structured logger used across all services. Every entry
// carries an action tag so log streams can be filtered by what happened
// rather than by message text.
type Logger interface {
	Debug(ctx context.Context, action string, msg string, kv ...interface{})
	Info(ctx context.Context, action string, msg string, kv ...interface{})
	Error(ctx context.Context, action string, msg string, err error, kv ...interface{})
}

type zapLogger struct {
	log *zap.SugaredLogger
}

// InitLogger creates a named logger writing JSON to stdout.
func InitLogger(service string, level Level) Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		toZapLevel(level),
	)

	log := zap.New(core).Sugar().With("service", service)

	return &zapLogger{log: log}
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(ctx context.Context, action string, msg string, kv ...interface{}) {
	l.log.Debugw(msg, append([]interface{}{"action", action}, kv...)...)
}

func (l *zapLogger) Info(ctx context.Context, action string, msg string, kv ...interface{}) {
	l.log.Infow(msg, append([]interface{}{"action", action}, kv...)...)
}

func (l *zapLogger) Error(ctx context.Context, action string, msg string, err error, kv ...interface{}) {
	l.log.Errorw(msg, append([]interface{}{"action", action, "error", err}, kv...)...)
}
