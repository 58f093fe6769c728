package a2a

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/anatolykoptev/cybereason-mcp/internal/toolreg"
)

// skillGroups maps card skills onto the tools they expose.
var skillGroups = []struct {
	id          string
	description string
	tools       []string
	tags        []string
}{
	{
		id:          "triage",
		description: "Read Cybereason Malops: list by investigation status, fetch details, list affected machines and users",
		tools:       []string{"get_alerts", "get_malop_details", "get_affected_machines"},
		tags:        []string{"edr", "malop", "triage"},
	},
	{
		id:          "response",
		description: "Change a Malop's investigation status (close, false positive, reopen)",
		tools:       []string{"update_alert_status"},
		tags:        []string{"edr", "malop", "response"},
	},
}

// BuildAgentCard describes the bridge as an A2A agent.
func BuildAgentCard(baseURL, version string, registry *toolreg.Registry) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               "Cybereason MCP",
		Description:        "Bridge to the Cybereason EDR API. Send {\"tool\": name, \"arguments\": {...}} to run one alert-management tool.",
		URL:                baseURL + "/a2a",
		Version:            version,
		ProtocolVersion:    "1.0",
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		DefaultInputModes:  []string{"application/json", "text/plain"},
		DefaultOutputModes: []string{"application/json"},
		Skills:             buildSkills(registry),
		SecuritySchemes: a2a.NamedSecuritySchemes{
			"bearer": a2a.HTTPAuthSecurityScheme{
				Scheme:      "bearer",
				Description: "Bearer token (CYBEREASON_A2A_SECRET)",
			},
		},
		Security: []a2a.SecurityRequirements{
			{a2a.SecuritySchemeName("bearer"): a2a.SecuritySchemeScopes{}},
		},
	}
}

func buildSkills(registry *toolreg.Registry) []a2a.AgentSkill {
	var skills []a2a.AgentSkill
	for _, g := range skillGroups {
		var examples []string
		for _, name := range g.tools {
			if _, ok := registry.Get(name); ok {
				examples = append(examples, `{"tool":"`+name+`","arguments":{}}`)
			}
		}
		if len(examples) == 0 {
			continue
		}
		skills = append(skills, a2a.AgentSkill{
			ID:          g.id,
			Name:        g.id,
			Description: g.description,
			Tags:        g.tags,
			Examples:    examples,
		})
	}
	return skills
}
