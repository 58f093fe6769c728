package toolreg

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/anatolykoptev/cybereason-mcp/internal/cybereason"
)

// RegisterAll registers the four alert-management tools.
// Enumerations in the schemas follow gen.
func RegisterAll(r *Registry, gen cybereason.Generation) {
	r.Register(&getAlertsTool{gen: gen})
	r.Register(&malopDetailsTool{})
	r.Register(&affectedMachinesTool{})
	r.Register(&updateStatusTool{gen: gen})
}

// helpers for parsing map[string]any args into typed values

func stringArg(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", &cybereason.ValidationError{Field: key, Reason: "is required"}
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &cybereason.ValidationError{Field: key, Reason: fmt.Sprintf("must be a string, got %T", v)}
	}
	if required && strings.TrimSpace(s) == "" {
		return "", &cybereason.ValidationError{Field: key, Reason: "must not be empty"}
	}
	return s, nil
}

func intArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, &cybereason.ValidationError{Field: key, Value: fmt.Sprint(n), Reason: "must be an integer"}
		}
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, &cybereason.ValidationError{Field: key, Reason: fmt.Sprintf("must be an integer, got %T", v)}
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, &cybereason.ValidationError{Field: key, Reason: fmt.Sprintf("items must be strings, got %T", item)}
			}
			out = append(out, str)
		}
		return out, nil
	case []string:
		return s, nil
	case string:
		return []string{s}, nil
	}
	return nil, &cybereason.ValidationError{Field: key, Reason: fmt.Sprintf("must be an array of strings, got %T", v)}
}

func malopIDSchema(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// --- get_alerts ---

type getAlertsTool struct{ gen cybereason.Generation }

func (t *getAlertsTool) Name() string   { return "get_alerts" }
func (t *getAlertsTool) ReadOnly() bool { return true }
func (t *getAlertsTool) Description() string {
	return fmt.Sprintf("List Cybereason Malops (alerts) by investigation status. Defaults to unactioned malops only (%s).",
		t.gen.DefaultStatus())
}
func (t *getAlertsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status_filter": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string", "enum": t.gen.Statuses()},
				"description": fmt.Sprintf("Statuses to include (default [%s])", t.gen.DefaultStatus()),
				"default":     []string{t.gen.DefaultStatus()},
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("Maximum number of malops (default %d, max %d)", cybereason.DefaultLimit, cybereason.MaxLimit),
				"default":     cybereason.DefaultLimit,
				"minimum":     cybereason.MinLimit,
				"maximum":     cybereason.MaxLimit,
			},
		},
	}
}
func (t *getAlertsTool) Execute(ctx context.Context, c cybereason.AlertManager, args map[string]any) (any, error) {
	statuses, err := stringSliceArg(args, "status_filter")
	if err != nil {
		return nil, err
	}
	limit, err := intArg(args, "limit", cybereason.DefaultLimit)
	if err != nil {
		return nil, err
	}
	return c.GetAlerts(ctx, statuses, limit)
}

// --- get_malop_details ---

type malopDetailsTool struct{}

func (t *malopDetailsTool) Name() string   { return "get_malop_details" }
func (t *malopDetailsTool) ReadOnly() bool { return true }
func (t *malopDetailsTool) Description() string {
	return "Get the full record of one Malop: attack technique, IOCs, timeline and related elements."
}
func (t *malopDetailsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"malop_id": malopIDSchema("Malop GUID, e.g. 11.2345678901234567890"),
		},
		"required": []string{"malop_id"},
	}
}
func (t *malopDetailsTool) Execute(ctx context.Context, c cybereason.AlertManager, args map[string]any) (any, error) {
	id, err := stringArg(args, "malop_id", true)
	if err != nil {
		return nil, err
	}
	return c.GetAlertDetails(ctx, id)
}

// --- get_affected_machines ---

type affectedMachinesTool struct{}

func (t *affectedMachinesTool) Name() string   { return "get_affected_machines" }
func (t *affectedMachinesTool) ReadOnly() bool { return true }
func (t *affectedMachinesTool) Description() string {
	return "List the machines and users affected by a Malop."
}
func (t *affectedMachinesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"malop_id": malopIDSchema("Malop GUID"),
		},
		"required": []string{"malop_id"},
	}
}
func (t *affectedMachinesTool) Execute(ctx context.Context, c cybereason.AlertManager, args map[string]any) (any, error) {
	id, err := stringArg(args, "malop_id", true)
	if err != nil {
		return nil, err
	}
	return c.GetAffectedEntities(ctx, id)
}

// --- update_alert_status ---

type updateStatusTool struct{ gen cybereason.Generation }

func (t *updateStatusTool) Name() string   { return "update_alert_status" }
func (t *updateStatusTool) ReadOnly() bool { return false }
func (t *updateStatusTool) Description() string {
	return "Set a Malop's investigation status, e.g. close it or mark it as a false positive. " +
		"The comment is kept in the local audit trail and is not sent to Cybereason."
}
func (t *updateStatusTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"malop_id": malopIDSchema("Malop GUID"),
			"status": map[string]any{
				"type":        "string",
				"enum":        t.gen.Statuses(),
				"description": "New investigation status",
			},
			"comment": map[string]any{"type": "string", "description": "Reason for the change (audit trail only)"},
		},
		"required": []string{"malop_id", "status"},
	}
}
func (t *updateStatusTool) Execute(ctx context.Context, c cybereason.AlertManager, args map[string]any) (any, error) {
	id, err := stringArg(args, "malop_id", true)
	if err != nil {
		return nil, err
	}
	status, err := stringArg(args, "status", true)
	if err != nil {
		return nil, err
	}
	comment, err := stringArg(args, "comment", false)
	if err != nil {
		return nil, err
	}
	return c.UpdateAlertStatus(ctx, id, status, comment)
}
