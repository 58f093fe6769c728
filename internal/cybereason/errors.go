package cybereason

import (
	"fmt"
	"net/http"
	"strings"
)

// AuthenticationError is returned when login fails or yields no session cookie.
type AuthenticationError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := "cybereason authentication failed: " + e.Reason
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Kind names the error for tool error payloads.
func (e *AuthenticationError) Kind() string { return "AuthenticationError" }

// RequestError is a non-2xx response from the Cybereason API.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("cybereason API error %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, truncate(strings.TrimSpace(e.Body), 300))
}

// Kind names the error for tool error payloads.
func (e *RequestError) Kind() string { return "RequestError" }

// IsAuth returns true for 401/403 responses.
func (e *RequestError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ValidationError rejects a caller-supplied argument before any network call.
type ValidationError struct {
	Field   string
	Value   string
	Allowed []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Allowed) > 0 {
		return fmt.Sprintf("invalid %s %q: must be one of: %s", e.Field, e.Value, strings.Join(e.Allowed, ", "))
	}
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Kind names the error for tool error payloads.
func (e *ValidationError) Kind() string { return "ValidationError" }

// NotFoundError is returned when a Malop GUID matches no record.
type NotFoundError struct {
	MalopID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("malop %q not found", e.MalopID)
}

// Kind names the error for tool error payloads.
func (e *NotFoundError) Kind() string { return "NotFoundError" }

// ConfigurationError aborts client construction.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required configuration: " + strings.Join(e.Missing, ", ")
	}
	return "invalid configuration: " + e.Reason
}

// Kind names the error for tool error payloads.
func (e *ConfigurationError) Kind() string { return "ConfigurationError" }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
