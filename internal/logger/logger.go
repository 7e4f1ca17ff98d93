package logger

import (
	"fmt"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. format "json" selects the production encoder,
// anything else the human readable development one.
func New(levelStr, format string) *zap.Logger {
	level := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// TemporalAdapter routes Temporal SDK logging (client, worker, workflow.GetLogger,
// activity.GetLogger) into zap.
type TemporalAdapter struct {
	l *zap.Logger
}

var (
	_ log.Logger     = (*TemporalAdapter)(nil)
	_ log.WithLogger = (*TemporalAdapter)(nil)
)

func NewTemporalAdapter(l *zap.Logger) *TemporalAdapter {
	return &TemporalAdapter{l: l.WithOptions(zap.AddCallerSkip(1))}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) {
	a.l.Debug(msg, keyvalFields(keyvals)...)
}

func (a *TemporalAdapter) Info(msg string, keyvals ...interface{}) {
	a.l.Info(msg, keyvalFields(keyvals)...)
}

func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{}) {
	a.l.Warn(msg, keyvalFields(keyvals)...)
}

func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) {
	a.l.Error(msg, keyvalFields(keyvals)...)
}

func (a *TemporalAdapter) With(keyvals ...interface{}) log.Logger {
	return &TemporalAdapter{l: a.l.With(keyvalFields(keyvals)...)}
}

func keyvalFields(keyvals []interface{}) []zap.Field {
	if len(keyvals) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(keyvals)/2+1)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 >= len(keyvals) {
			out = append(out, zap.Any("extra", keyvals[i]))
			break
		}
		if err, ok := keyvals[i+1].(error); ok {
			out = append(out, zap.NamedError(key, err))
			continue
		}
		out = append(out, zap.Any(key, keyvals[i+1]))
	}
	return out
}
