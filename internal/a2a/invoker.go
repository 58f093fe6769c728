package a2a

import (
	"context"
	"errors"

	"github.com/anatolykoptev/cybereason-mcp/internal/toolreg"
)

// DispatcherInvoker routes A2A tool calls through the shared dispatcher.
type DispatcherInvoker struct {
	d *toolreg.Dispatcher
}

// NewDispatcherInvoker wraps d.
func NewDispatcherInvoker(d *toolreg.Dispatcher) *DispatcherInvoker {
	return &DispatcherInvoker{d: d}
}

// Invoke returns the tool's JSON result. An error payload is returned as the
// error text so the task is marked failed.
func (i *DispatcherInvoker) Invoke(ctx context.Context, call Call) (string, error) {
	res := i.d.Dispatch(ctx, call.Tool, call.Arguments)
	if res.IsError {
		return "", errors.New(res.Text)
	}
	return res.Text, nil
}
