package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
)

// Call is one tool invocation carried in an A2A message, either as a data
// part or as JSON text: {"tool": "get_alerts", "arguments": {...}}.
type Call struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Invoker runs a tool call and returns its JSON result.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (string, error)
}

// Executor implements a2asrv.AgentExecutor on top of an Invoker.
type Executor struct {
	inv Invoker
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)

// NewExecutor creates a new A2A executor.
func NewExecutor(inv Invoker) *Executor {
	return &Executor{inv: inv}
}

// Execute decodes the tool call and reports the result as the final task state.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	call, err := parseCall(reqCtx.Message)
	if err != nil {
		return finish(ctx, reqCtx, queue, a2a.TaskStateRejected, err.Error())
	}

	if err := queue.Write(ctx, a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)); err != nil {
		return fmt.Errorf("write working status: %w", err)
	}

	out, err := e.inv.Invoke(ctx, call)
	if err != nil {
		return finish(ctx, reqCtx, queue, a2a.TaskStateFailed, err.Error())
	}
	return finish(ctx, reqCtx, queue, a2a.TaskStateCompleted, out)
}

// Cancel writes a canceled status event.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true
	return queue.Write(ctx, event)
}

func finish(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, state a2a.TaskState, text string) error {
	event := a2a.NewStatusUpdateEvent(reqCtx, state,
		a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: text}))
	event.Final = true
	return queue.Write(ctx, event)
}

var errNoCall = errors.New(`message must carry a tool call: {"tool": "<name>", "arguments": {...}}`)

// parseCall takes the first data part, else the joined text parts.
func parseCall(msg *a2a.Message) (Call, error) {
	if msg == nil {
		return Call{}, errNoCall
	}

	var texts []string
	for _, p := range msg.Parts {
		switch part := p.(type) {
		case a2a.DataPart:
			return callFromMap(part.Data)
		case a2a.TextPart:
			texts = append(texts, part.Text)
		}
	}

	text := strings.TrimSpace(strings.Join(texts, "\n"))
	if text == "" {
		return Call{}, errNoCall
	}
	var call Call
	if err := json.Unmarshal([]byte(text), &call); err != nil {
		return Call{}, fmt.Errorf("%w (%v)", errNoCall, err)
	}
	if call.Tool == "" {
		return Call{}, errNoCall
	}
	return call, nil
}

func callFromMap(data map[string]any) (Call, error) {
	name, _ := data["tool"].(string)
	if name == "" {
		return Call{}, errNoCall
	}
	call := Call{Tool: name}
	if args, ok := data["arguments"].(map[string]any); ok {
		call.Arguments = args
	} else if data["arguments"] != nil {
		return Call{}, fmt.Errorf("%w (arguments must be an object)", errNoCall)
	}
	return call, nil
}
