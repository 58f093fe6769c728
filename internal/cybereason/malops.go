package cybereason

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// malopsAPI is generation B: the Malop management (mmng) v2 API.
type malopsAPI struct{}

const malopsPath = "/rest/mmng/v2/malops"

var malopsStatuses = []string{"Pending", "UnderInvestigation", "OnHold", "Closed", "ReOpened"}

func (malopsAPI) Name() string          { return "v2" }
func (malopsAPI) LoginPath() string     { return "/login.html" }
func (malopsAPI) Statuses() []string    { return malopsStatuses }
func (malopsAPI) DefaultStatus() string { return "Pending" }

type malopsQuery struct {
	Search     struct{}     `json:"search"`
	Range      timeRange    `json:"range"`
	Pagination pagination   `json:"pagination"`
	Filter     malopsFilter `json:"filter"`
	Sort       []sortField  `json:"sort"`
}

type timeRange struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type pagination struct {
	PageSize int `json:"pageSize"`
	Offset   int `json:"offset"`
}

type malopsFilter struct {
	Malop malopFilter `json:"malop"`
}

type malopFilter struct {
	GUID                []string `json:"guid,omitempty"`
	InvestigationStatus []string `json:"investigationStatus,omitempty"`
}

type sortField struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// malopsQueryFor covers the whole retention window, from epoch to now.
func malopsQueryFor(filter malopFilter, pageSize int, now time.Time) malopsQuery {
	return malopsQuery{
		Range:      timeRange{From: 0, To: now.UnixMilli()},
		Pagination: pagination{PageSize: pageSize, Offset: 0},
		Filter:     malopsFilter{Malop: filter},
		Sort:       []sortField{{Field: "LastUpdateTime", Order: "desc"}},
	}
}

func (malopsAPI) listRequest(statuses []string, limit int, now time.Time) apiRequest {
	return apiRequest{
		Method: "POST",
		Path:   malopsPath,
		Body:   malopsQueryFor(malopFilter{InvestigationStatus: statuses}, limit, now),
	}
}

func (malopsAPI) detailRequest(malopID string, now time.Time) apiRequest {
	return apiRequest{
		Method: "POST",
		Path:   malopsPath,
		Body:   malopsQueryFor(malopFilter{GUID: []string{malopID}}, 1, now),
	}
}

type malopsStatusUpdate struct {
	InvestigationStatus string `json:"investigationStatus"`
}

func (malopsAPI) updateRequest(malopID, status string) apiRequest {
	return apiRequest{
		Method: "PUT",
		Path:   malopsPath + "/" + url.PathEscape(malopID),
		Body:   malopsStatusUpdate{InvestigationStatus: status},
	}
}

type malopsResponse struct {
	Data struct {
		Data      []json.RawMessage `json:"data"`
		TotalHits int               `json:"totalHits"`
	} `json:"data"`
}

func (malopsAPI) decodePage(data []byte) ([]json.RawMessage, int, error) {
	var resp malopsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0, fmt.Errorf("decode mmng/v2 malops response: %w", err)
	}
	records := resp.Data.Data
	if records == nil {
		records = []json.RawMessage{}
	}
	total := resp.Data.TotalHits
	if total < len(records) {
		total = len(records)
	}
	return records, total, nil
}

func (malopsAPI) entities(record json.RawMessage) (json.RawMessage, json.RawMessage) {
	return firstOf(record, []string{"machines"}), firstOf(record, []string{"users"})
}

func (malopsAPI) summarize(record json.RawMessage) MalopSummary {
	var s MalopSummary
	_ = json.Unmarshal(record, &s)
	if s.Priority == "" {
		s.Priority = stringAt(record, "malopPriority")
	}
	if s.Severity == "" {
		s.Severity = stringAt(record, "malopSeverity")
	}
	return s
}
