package cybereason

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Generation is one wire variant of the Cybereason API. The two supported
// generations share the alert-management capability but use incompatible
// endpoints, payload shapes and status enumerations.
type Generation interface {
	// Name is the configuration value selecting this generation (v1, v2).
	Name() string
	LoginPath() string
	// Statuses is the investigation-status enumeration accepted by this generation.
	Statuses() []string
	// DefaultStatus is the single "unactioned" status used when no filter is given.
	DefaultStatus() string

	listRequest(statuses []string, limit int, now time.Time) apiRequest
	detailRequest(malopID string, now time.Time) apiRequest
	updateRequest(malopID, status string) apiRequest
	decodePage(data []byte) (records []json.RawMessage, total int, err error)
	entities(record json.RawMessage) (machines, users json.RawMessage)
	summarize(record json.RawMessage) MalopSummary
}

type apiRequest struct {
	Method string
	Path   string
	Body   any
}

// Generations lists the supported API generation names.
var Generations = []string{"v1", "v2"}

// GenerationFor returns the generation selected by name.
// An empty name selects v1.
func GenerationFor(name string) (Generation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "v1", "unified", "legacy":
		return unifiedAPI{}, nil
	case "v2", "mmng", "malops":
		return malopsAPI{}, nil
	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown API version %q, use: %s", name, strings.Join(Generations, ", "))}
	}
}

// ValidStatus reports whether status belongs to the generation's enumeration.
func ValidStatus(g Generation, status string) bool {
	return slices.Contains(g.Statuses(), status)
}

func sortedStatuses(g Generation) []string {
	out := slices.Clone(g.Statuses())
	slices.Sort(out)
	return out
}

// lookup walks nested JSON objects and returns the raw value at path, or nil.
func lookup(raw json.RawMessage, path ...string) json.RawMessage {
	cur := raw
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil
		}
		next, ok := obj[key]
		if !ok {
			return nil
		}
		cur = next
	}
	if len(cur) == 0 || string(cur) == "null" {
		return nil
	}
	return cur
}

// firstOf returns the first non-nil lookup, or an empty JSON array.
func firstOf(raw json.RawMessage, paths ...[]string) json.RawMessage {
	for _, p := range paths {
		if v := lookup(raw, p...); v != nil {
			return v
		}
	}
	return json.RawMessage("[]")
}
