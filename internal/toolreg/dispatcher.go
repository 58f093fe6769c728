package toolreg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/anatolykoptev/cybereason-mcp/internal/cybereason"
	"github.com/anatolykoptev/cybereason-mcp/internal/metrics"
)

// DefaultMaxConcurrent bounds in-flight console calls when no limit is configured.
const DefaultMaxConcurrent = 8

// ClientFactory builds an authenticated AlertManager.
type ClientFactory func(ctx context.Context) (cybereason.AlertManager, error)

// NewClientFactory returns a factory that validates cfg, builds a client and logs in.
func NewClientFactory(cfg cybereason.Config, opts ...cybereason.Option) ClientFactory {
	return func(ctx context.Context) (cybereason.AlertManager, error) {
		c, err := cybereason.NewClient(cfg, opts...)
		if err != nil {
			return nil, err
		}
		if err := c.Login(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		slog.Info("cybereason client initialised", slog.String("api_version", c.Generation().Name()))
		return c, nil
	}
}

// Result is the serialized outcome of one tool invocation.
type Result struct {
	Text    string
	IsError bool
}

// Dispatcher maps tool invocations onto one shared, lazily built client.
//
// Invocations are not serialized against each other; the semaphore only bounds
// how many reach the console at once. A failed client construction is not
// cached, so the next invocation tries again.
type Dispatcher struct {
	registry *Registry
	factory  ClientFactory
	sem      *semaphore.Weighted

	mu     sync.Mutex
	client cybereason.AlertManager
}

// NewDispatcher creates a dispatcher. maxConcurrent <= 0 uses DefaultMaxConcurrent.
func NewDispatcher(registry *Registry, factory ClientFactory, maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Dispatcher{
		registry: registry,
		factory:  factory,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Registry returns the tool registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// DispatchRaw decodes JSON arguments and dispatches. Empty input means no arguments.
func (d *Dispatcher) DispatchRaw(ctx context.Context, name string, raw json.RawMessage) Result {
	args := map[string]any{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && string(trimmed) != "null" {
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return d.finish(name, uuid.NewString(), time.Now(), nil,
				&cybereason.ValidationError{Field: "arguments", Reason: "must be a JSON object: " + err.Error()})
		}
	}
	return d.Dispatch(ctx, name, args)
}

// Dispatch runs one tool. It never returns a Go error: failures become an
// error payload with IsError set.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) Result {
	id := uuid.NewString()
	start := time.Now()
	slog.Debug("tool call", slog.String("invocation_id", id), slog.String("tool", name))

	out, err := d.run(ctx, name, args)
	return d.finish(name, id, start, out, err)
}

func (d *Dispatcher) run(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, ok := d.registry.Get(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	client, err := d.Client(ctx)
	if err != nil {
		return nil, err
	}
	return tool.Execute(ctx, client, args)
}

func (d *Dispatcher) finish(name, id string, start time.Time, out any, err error) Result {
	elapsed := time.Since(start)
	if err != nil {
		kind := errorKind(err)
		metrics.RecordToolCall(name, kind, elapsed)
		slog.Warn("tool call failed",
			slog.String("invocation_id", id),
			slog.String("tool", name),
			slog.String("kind", kind),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
		return Result{Text: errorPayload(kind, err.Error()), IsError: true}
	}

	text, encErr := encode(out)
	if encErr != nil {
		metrics.RecordToolCall(name, "EncodingError", elapsed)
		return Result{Text: errorPayload("EncodingError", encErr.Error()), IsError: true}
	}
	metrics.RecordToolCall(name, "ok", elapsed)
	slog.Info("tool call",
		slog.String("invocation_id", id),
		slog.String("tool", name),
		slog.Duration("duration", elapsed))
	return Result{Text: text}
}

// Client returns the shared client, building it on first use.
func (d *Dispatcher) Client(ctx context.Context) (cybereason.AlertManager, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client, nil
	}
	c, err := d.factory(ctx)
	if err != nil {
		return nil, err
	}
	d.client = c
	return c, nil
}

// Close releases the shared client, if one was built.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if closer, ok := d.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// errorKind maps an error onto the taxonomy used in error payloads.
func errorKind(err error) string {
	var k interface{ Kind() string }
	switch {
	case errors.As(err, &k):
		return k.Kind()
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "CanceledError"
	}
	return "RequestError"
}

func errorPayload(kind, msg string) string {
	text, err := encode(map[string]string{"error": kind, "message": msg})
	if err != nil {
		return `{"error":"` + kind + `"}`
	}
	return text
}

// encode renders v as two-space indented JSON without HTML escaping.
func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
