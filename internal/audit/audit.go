// Package audit records Malop status changes to one or more sinks.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/cybereason-mcp/internal/cybereason"
)

// sinkTimeout bounds each sink write. Sinks run detached from the caller's
// cancellation so a finished tool call still leaves its audit row.
const sinkTimeout = 5 * time.Second

// Record is one audited status change.
type Record struct {
	ID         string
	Time       time.Time
	MalopID    string
	Status     string
	Comment    string
	APIVersion string
	// Outcome is "ok" or "error".
	Outcome string
	Error   string
}

// Sink persists audit records.
type Sink interface {
	Name() string
	Write(ctx context.Context, rec Record) error
}

// Trail fans status changes out to its sinks. A failing sink is logged and
// never fails the update that produced the record.
type Trail struct {
	sinks []Sink
	now   func() time.Time
}

var _ cybereason.Auditor = (*Trail)(nil)

// NewTrail creates a trail writing to sinks in order.
func NewTrail(sinks ...Sink) *Trail {
	return &Trail{sinks: sinks, now: time.Now}
}

// Sinks returns the names of the configured sinks.
func (t *Trail) Sinks() []string {
	names := make([]string, 0, len(t.sinks))
	for _, s := range t.sinks {
		names = append(names, s.Name())
	}
	return names
}

// RecordStatusChange implements cybereason.Auditor.
func (t *Trail) RecordStatusChange(ctx context.Context, ch cybereason.StatusChange) {
	rec := Record{
		ID:         uuid.NewString(),
		Time:       t.now().UTC(),
		MalopID:    ch.MalopID,
		Status:     ch.Status,
		Comment:    ch.Comment,
		APIVersion: ch.APIVersion,
		Outcome:    "ok",
	}
	if ch.Err != nil {
		rec.Outcome = "error"
		rec.Error = ch.Err.Error()
	}

	for _, s := range t.sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := s.Write(sctx, rec); err != nil {
			slog.Warn("audit sink failed",
				slog.String("sink", s.Name()),
				slog.String("audit_id", rec.ID),
				slog.Any("error", err))
		}
		cancel()
	}
}

// Close closes every sink that holds resources.
func (t *Trail) Close() {
	for _, s := range t.sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
