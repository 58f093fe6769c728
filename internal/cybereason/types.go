package cybereason

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// DefaultLimit is the page size used when the caller supplies none.
	DefaultLimit = 25
	// MinLimit and MaxLimit bound the get_alerts page size.
	MinLimit = 1
	MaxLimit = 1000

	// SessionCookie is the cookie the console sets on a successful login.
	SessionCookie = "JSESSIONID"
)

// Config holds connection settings for one Cybereason console.
type Config struct {
	BaseURL        string
	Username       string
	Password       string
	VerifySSL      bool
	APIVersion     string
	LoginTimeout   time.Duration
	RequestTimeout time.Duration

	BreakerEnabled     bool
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// AlertManager is the alert-management capability shared by both API generations.
type AlertManager interface {
	Generation() Generation
	Login(ctx context.Context) error
	GetAlerts(ctx context.Context, statusFilter []string, limit int) (*AlertPage, error)
	GetAlertDetails(ctx context.Context, malopID string) (json.RawMessage, error)
	GetAffectedEntities(ctx context.Context, malopID string) (*AffectedEntities, error)
	UpdateAlertStatus(ctx context.Context, malopID, status, comment string) (json.RawMessage, error)
}

// AlertPage is one page of Malops as returned by the console.
// Records are passed through verbatim.
type AlertPage struct {
	Malops     []json.RawMessage `json:"malops"`
	Total      int               `json:"total"`
	Returned   int               `json:"returned"`
	Limit      int               `json:"limit"`
	Statuses   []string          `json:"statuses"`
	APIVersion string            `json:"api_version"`
}

// AffectedEntities pairs a Malop with the machines and users it touched.
type AffectedEntities struct {
	MalopID  string          `json:"malop_id"`
	Machines json.RawMessage `json:"machines"`
	Users    json.RawMessage `json:"users"`
}

// MalopSummary is a typed projection of a Malop record, used for CLI output.
type MalopSummary struct {
	GUID                string   `json:"guid"`
	DisplayName         string   `json:"displayName"`
	CreationTime        int64    `json:"creationTime"`
	LastUpdateTime      int64    `json:"lastUpdateTime"`
	Status              string   `json:"status"`
	InvestigationStatus string   `json:"investigationStatus"`
	Severity            string   `json:"severity"`
	Priority            string   `json:"priority"`
	DetectionTypes      []string `json:"detectionTypes"`
}

// Created returns the creation time; the console reports epoch milliseconds.
func (m MalopSummary) Created() time.Time {
	return time.UnixMilli(m.CreationTime)
}

// StatusChange describes one status update attempt.
// Comment is never sent to the console; it exists for the local audit trail only.
type StatusChange struct {
	MalopID    string
	Status     string
	Comment    string
	APIVersion string
	Err        error
}

// Auditor records status changes locally.
type Auditor interface {
	RecordStatusChange(ctx context.Context, change StatusChange)
}
