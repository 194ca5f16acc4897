// Package logger builds the zap logger shared by all services. Entries are
// JSON so Alloy can ship them to Loki, and request-scoped loggers carry the
// trace_id/span_id of the active span so logs can be joined with traces.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Service string
	Env     string
	Level   string
	// File enables a rotating log file next to stdout when non-empty.
	File string
}

func New(opts Options) (*zap.Logger, error) {
	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}

	return NewWithWriter(opts, zapcore.AddSync(io.MultiWriter(writers...))), nil
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(opts Options, w zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, parseLevel(opts.Level))

	fields := []zap.Field{zap.String("service", opts.Service)}
	if opts.Env != "" {
		fields = append(fields, zap.String("env", opts.Env))
	}
	return zap.New(core, zap.AddCaller()).With(fields...)
}

// For returns log with the trace and span ids of the span in ctx attached.
func For(ctx context.Context, log *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
