package cybereason

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// unifiedAPI is generation A: the crimes/unified visual-search API.
type unifiedAPI struct{}

const (
	unifiedQueryPath  = "/rest/crimes/unified"
	unifiedUpdatePath = "/rest/crimes/update-status"
	// unifiedQueryTimeout is the server-side query budget in milliseconds.
	unifiedQueryTimeout = 120000
)

var unifiedStatuses = []string{"TODO", "CLOSED", "FP", "OPEN", "UNREAD"}

func (unifiedAPI) Name() string          { return "v1" }
func (unifiedAPI) LoginPath() string     { return "/rest/login" }
func (unifiedAPI) Statuses() []string    { return unifiedStatuses }
func (unifiedAPI) DefaultStatus() string { return "TODO" }

type unifiedQuery struct {
	QueryPath        []queryElement `json:"queryPath"`
	TotalResultLimit int            `json:"totalResultLimit"`
	PerGroupLimit    int            `json:"perGroupLimit"`
	PerFeatureLimit  int            `json:"perFeatureLimit"`
	TemplateContext  string         `json:"templateContext"`
	QueryTimeout     int            `json:"queryTimeout"`
}

type queryElement struct {
	RequestedType string        `json:"requestedType"`
	Filters       []facetFilter `json:"filters"`
	IsResult      bool          `json:"isResult"`
}

type facetFilter struct {
	FacetName  string   `json:"facetName"`
	FilterType string   `json:"filterType"`
	Values     []string `json:"values"`
}

func (unifiedAPI) listRequest(statuses []string, limit int, _ time.Time) apiRequest {
	return apiRequest{
		Method: "POST",
		Path:   unifiedQueryPath,
		Body: unifiedQuery{
			QueryPath: []queryElement{{
				RequestedType: "MalopProcess",
				Filters: []facetFilter{
					{FacetName: "malopActivityType", FilterType: "Equals", Values: []string{"MALICIOUS_ACTIVITY"}},
					{FacetName: "status", FilterType: "Equals", Values: statuses},
				},
				IsResult: true,
			}},
			TotalResultLimit: limit,
			PerGroupLimit:    limit,
			PerFeatureLimit:  limit,
			TemplateContext:  "OVERVIEW",
			QueryTimeout:     unifiedQueryTimeout,
		},
	}
}

func (unifiedAPI) detailRequest(malopID string, _ time.Time) apiRequest {
	return apiRequest{
		Method: "POST",
		Path:   unifiedQueryPath,
		Body: unifiedQuery{
			QueryPath: []queryElement{{
				RequestedType: "MalopProcess",
				Filters: []facetFilter{
					{FacetName: "guid", FilterType: "Equals", Values: []string{malopID}},
				},
				IsResult: true,
			}},
			TotalResultLimit: 1,
			PerGroupLimit:    1,
			PerFeatureLimit:  1,
			TemplateContext:  "MALOP",
			QueryTimeout:     unifiedQueryTimeout,
		},
	}
}

type unifiedStatusUpdate struct {
	MalopID   string `json:"malopId"`
	NewStatus string `json:"newStatus"`
}

func (unifiedAPI) updateRequest(malopID, status string) apiRequest {
	return apiRequest{
		Method: "POST",
		Path:   unifiedUpdatePath,
		Body:   unifiedStatusUpdate{MalopID: malopID, NewStatus: status},
	}
}

type unifiedResponse struct {
	Data struct {
		ResultIDToElementDataMap map[string]json.RawMessage `json:"resultIdToElementDataMap"`
		TotalResults             int                        `json:"totalResults"`
	} `json:"data"`
}

// decodePage flattens resultIdToElementDataMap into a GUID-ordered list.
func (unifiedAPI) decodePage(data []byte) ([]json.RawMessage, int, error) {
	var resp unifiedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0, fmt.Errorf("decode crimes/unified response: %w", err)
	}
	ids := make([]string, 0, len(resp.Data.ResultIDToElementDataMap))
	for id := range resp.Data.ResultIDToElementDataMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		records = append(records, resp.Data.ResultIDToElementDataMap[id])
	}
	total := resp.Data.TotalResults
	if total < len(records) {
		total = len(records)
	}
	return records, total, nil
}

func (unifiedAPI) entities(record json.RawMessage) (json.RawMessage, json.RawMessage) {
	machines := firstOf(record, []string{"machines"}, []string{"elementValues", "affectedMachines"})
	users := firstOf(record, []string{"users"}, []string{"elementValues", "affectedUsers"})
	return machines, users
}

// summarize reads flat records first, then the simpleValues envelope the
// visual-search API wraps element attributes in.
func (unifiedAPI) summarize(record json.RawMessage) MalopSummary {
	var s MalopSummary
	_ = json.Unmarshal(record, &s)

	if s.GUID == "" {
		s.GUID = stringAt(record, "guidString")
	}
	if s.DisplayName == "" {
		s.DisplayName = simpleValue(record, "elementDisplayName")
	}
	if s.Status == "" {
		s.Status = simpleValue(record, "managementStatus")
	}
	if s.CreationTime == 0 {
		s.CreationTime, _ = strconv.ParseInt(simpleValue(record, "creationTime"), 10, 64)
	}
	if s.LastUpdateTime == 0 {
		s.LastUpdateTime, _ = strconv.ParseInt(simpleValue(record, "malopLastUpdateTime"), 10, 64)
	}
	if len(s.DetectionTypes) == 0 {
		if v := simpleValue(record, "detectionType"); v != "" {
			s.DetectionTypes = []string{v}
		}
	}
	return s
}

func simpleValue(record json.RawMessage, name string) string {
	raw := lookup(record, "simpleValues", name, "values")
	var values []string
	if raw == nil || json.Unmarshal(raw, &values) != nil || len(values) == 0 {
		return ""
	}
	return values[0]
}

func stringAt(record json.RawMessage, path ...string) string {
	var s string
	if raw := lookup(record, path...); raw != nil {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}
