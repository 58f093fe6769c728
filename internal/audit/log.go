package audit

import (
	"context"
	"log/slog"
)

// LogSink writes audit records to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink logs through l, or the default logger when l is nil.
func NewLogSink(l *slog.Logger) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{logger: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, rec Record) error {
	attrs := []slog.Attr{
		slog.String("audit_id", rec.ID),
		slog.String("malop_id", rec.MalopID),
		slog.String("status", rec.Status),
		slog.String("comment", rec.Comment),
		slog.String("api_version", rec.APIVersion),
		slog.String("outcome", rec.Outcome),
	}
	level := slog.LevelInfo
	if rec.Error != "" {
		attrs = append(attrs, slog.String("error", rec.Error))
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "malop status change", attrs...)
	return nil
}
