package tools

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/cybereason-mcp/internal/cybereason"
	"github.com/anatolykoptev/cybereason-mcp/internal/toolreg"
)

type stubManager struct {
	gen cybereason.Generation
}

func (s *stubManager) Generation() cybereason.Generation { return s.gen }
func (s *stubManager) Login(context.Context) error       { return nil }
func (s *stubManager) GetAlerts(_ context.Context, statuses []string, limit int) (*cybereason.AlertPage, error) {
	if len(statuses) == 0 {
		statuses = []string{s.gen.DefaultStatus()}
	}
	return &cybereason.AlertPage{Malops: []json.RawMessage{json.RawMessage(`{"guid":"11.1"}`)}, Total: 1, Returned: 1, Limit: limit, Statuses: statuses, APIVersion: s.gen.Name()}, nil
}
func (s *stubManager) GetAlertDetails(_ context.Context, id string) (json.RawMessage, error) {
	return nil, &cybereason.NotFoundError{MalopID: id}
}
func (s *stubManager) GetAffectedEntities(_ context.Context, id string) (*cybereason.AffectedEntities, error) {
	return &cybereason.AffectedEntities{MalopID: id, Machines: json.RawMessage(`[]`), Users: json.RawMessage(`[]`)}, nil
}
func (s *stubManager) UpdateAlertStatus(_ context.Context, id, status, _ string) (json.RawMessage, error) {
	if !cybereason.ValidStatus(s.gen, status) {
		return nil, &cybereason.ValidationError{Field: "status", Value: status, Allowed: s.gen.Statuses()}
	}
	return json.RawMessage(`{"status":"ok"}`), nil
}

func connect(t *testing.T, version string) *mcp.ClientSession {
	t.Helper()
	gen, err := cybereason.GenerationFor(version)
	if err != nil {
		t.Fatal(err)
	}
	reg := toolreg.NewRegistry()
	toolreg.RegisterAll(reg, gen)
	d := toolreg.NewDispatcher(reg, func(context.Context) (cybereason.AlertManager, error) {
		return &stubManager{gen: gen}, nil
	}, 2)

	server := mcp.NewServer(&mcp.Implementation{Name: "cybereason-mcp", Version: "test"}, nil)
	RegisterAll(server, d)

	ctx := context.Background()
	ct, st := mcp.NewInMemoryTransports()
	if _, err := server.Connect(ctx, st, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content blocks = %d, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestListTools(t *testing.T) {
	for _, version := range cybereason.Generations {
		t.Run(version, func(t *testing.T) {
			cs := connect(t, version)
			res, err := cs.ListTools(context.Background(), nil)
			if err != nil {
				t.Fatalf("ListTools: %v", err)
			}

			byName := map[string]*mcp.Tool{}
			for _, tool := range res.Tools {
				byName[tool.Name] = tool
			}
			for _, name := range []string{"get_alerts", "get_malop_details", "get_affected_machines", "update_alert_status"} {
				if byName[name] == nil {
					t.Errorf("tool %s not listed", name)
				}
			}
			if len(byName) != 4 {
				t.Errorf("tools = %d, want 4", len(byName))
			}

			for _, name := range []string{"get_alerts", "get_malop_details", "get_affected_machines"} {
				if ann := byName[name].Annotations; ann == nil || !ann.ReadOnlyHint || !ann.IdempotentHint {
					t.Errorf("%s annotations = %+v, want read-only and idempotent", name, ann)
				}
			}
			if ann := byName["update_alert_status"].Annotations; ann == nil || ann.ReadOnlyHint || ann.IdempotentHint {
				t.Errorf("update_alert_status annotations = %+v, want neither read-only nor idempotent", ann)
			}

			schema, _ := json.Marshal(byName["update_alert_status"].InputSchema)
			gen, _ := cybereason.GenerationFor(version)
			for _, status := range gen.Statuses() {
				if !strings.Contains(string(schema), `"`+status+`"`) {
					t.Errorf("schema missing status %s: %s", status, schema)
				}
			}
		})
	}
}

func TestCallTool_Success(t *testing.T) {
	cs := connect(t, "v2")
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_alerts",
		Arguments: map[string]any{"limit": 5},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError: %s", textOf(t, res))
	}

	var page cybereason.AlertPage
	if err := json.Unmarshal([]byte(textOf(t, res)), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Limit != 5 || !slices.Equal(page.Statuses, []string{"Pending"}) {
		t.Errorf("page = limit %d statuses %v", page.Limit, page.Statuses)
	}
}

func TestCallTool_ErrorPayload(t *testing.T) {
	cs := connect(t, "v1")
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_malop_details",
		Arguments: map[string]any{"malop_id": "11.404"},
	})
	if err != nil {
		t.Fatalf("CallTool returned protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("IsError = false, want true")
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(textOf(t, res)), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["error"] != "NotFoundError" || !strings.Contains(payload["message"], "11.404") {
		t.Errorf("payload = %v", payload)
	}
}

func TestCallTool_InvalidStatus(t *testing.T) {
	cs := connect(t, "v1")
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "update_alert_status",
		Arguments: map[string]any{"malop_id": "11.123", "status": "INVALID"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError || !strings.Contains(textOf(t, res), `"ValidationError"`) {
		t.Errorf("result = %s, want ValidationError payload", textOf(t, res))
	}
}
