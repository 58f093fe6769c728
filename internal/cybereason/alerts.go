package cybereason

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
)

// GetAlerts lists Malops filtered by investigation status.
// An empty filter means the generation's single "unactioned" status.
// limit must be within [MinLimit, MaxLimit].
func (c *Client) GetAlerts(ctx context.Context, statusFilter []string, limit int) (*AlertPage, error) {
	statuses := statusFilter
	if len(statuses) == 0 {
		statuses = []string{c.gen.DefaultStatus()}
	}
	for _, s := range statuses {
		if err := c.validateStatus("status_filter", s); err != nil {
			return nil, err
		}
	}
	if limit < MinLimit || limit > MaxLimit {
		return nil, &ValidationError{
			Field:  "limit",
			Value:  strconv.Itoa(limit),
			Reason: "must be between " + strconv.Itoa(MinLimit) + " and " + strconv.Itoa(MaxLimit),
		}
	}

	ar := c.gen.listRequest(statuses, limit, c.now())
	resp, err := c.request(ctx, ar.Method, ar.Path, true, ar.Body)
	if err != nil {
		return nil, err
	}
	records, total, err := c.gen.decodePage(resp.body)
	if err != nil {
		return nil, err
	}
	return &AlertPage{
		Malops:     records,
		Total:      total,
		Returned:   len(records),
		Limit:      limit,
		Statuses:   statuses,
		APIVersion: c.gen.Name(),
	}, nil
}

// GetAlertDetails returns the single Malop matching malopID, verbatim.
func (c *Client) GetAlertDetails(ctx context.Context, malopID string) (json.RawMessage, error) {
	if err := validateMalopID(malopID); err != nil {
		return nil, err
	}

	ar := c.gen.detailRequest(malopID, c.now())
	resp, err := c.request(ctx, ar.Method, ar.Path, true, ar.Body)
	if err != nil {
		return nil, err
	}
	records, _, err := c.gen.decodePage(resp.body)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NotFoundError{MalopID: malopID}
	}
	return records[0], nil
}

// GetAffectedEntities returns the machines and users attached to a Malop.
func (c *Client) GetAffectedEntities(ctx context.Context, malopID string) (*AffectedEntities, error) {
	record, err := c.GetAlertDetails(ctx, malopID)
	if err != nil {
		return nil, err
	}
	machines, users := c.gen.entities(record)
	return &AffectedEntities{MalopID: malopID, Machines: machines, Users: users}, nil
}

// UpdateAlertStatus sets a Malop's investigation status.
//
// comment is recorded by the Auditor only and is not transmitted to the
// console. An empty or non-JSON response body counts as success and yields a
// synthesized confirmation.
func (c *Client) UpdateAlertStatus(ctx context.Context, malopID, status, comment string) (json.RawMessage, error) {
	if err := validateMalopID(malopID); err != nil {
		return nil, err
	}
	if err := c.validateStatus("status", status); err != nil {
		return nil, err
	}

	ar := c.gen.updateRequest(malopID, status)
	resp, err := c.request(ctx, ar.Method, ar.Path, true, ar.Body)
	c.audit.RecordStatusChange(ctx, StatusChange{
		MalopID:    malopID,
		Status:     status,
		Comment:    comment,
		APIVersion: c.gen.Name(),
		Err:        err,
	})
	if err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.body)
	if len(body) == 0 || !json.Valid(body) {
		confirmation, _ := json.Marshal(map[string]string{
			"status":    "ok",
			"malopId":   malopID,
			"newStatus": status,
		})
		return confirmation, nil
	}
	return json.RawMessage(body), nil
}

func (c *Client) validateStatus(field, status string) error {
	if ValidStatus(c.gen, status) {
		return nil
	}
	return &ValidationError{Field: field, Value: status, Allowed: sortedStatuses(c.gen)}
}

func validateMalopID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "malop_id", Reason: "must not be empty"}
	}
	return nil
}

// logAuditor writes status changes to the default logger.
type logAuditor struct{}

func (logAuditor) RecordStatusChange(_ context.Context, ch StatusChange) {
	attrs := []any{
		slog.String("malop_id", ch.MalopID),
		slog.String("status", ch.Status),
		slog.String("comment", ch.Comment),
		slog.String("api_version", ch.APIVersion),
	}
	if ch.Err != nil {
		slog.Warn("malop status update failed", append(attrs, slog.Any("error", ch.Err))...)
		return
	}
	slog.Info("malop status updated", attrs...)
}
