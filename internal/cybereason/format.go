package cybereason

import (
	"fmt"
	"strings"
)

// Summaries projects every record of the page into a MalopSummary.
func Summaries(g Generation, page *AlertPage) []MalopSummary {
	out := make([]MalopSummary, 0, len(page.Malops))
	for _, rec := range page.Malops {
		out = append(out, g.summarize(rec))
	}
	return out
}

// FormatAlerts creates a human-readable Malop listing.
func FormatAlerts(g Generation, page *AlertPage) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Cybereason Malops (API %s) | Status: %s | Showing %d of %d\n",
		page.APIVersion, strings.Join(page.Statuses, ","), page.Returned, page.Total)
	if page.Returned == 0 {
		b.WriteString("\nNo malops.\n")
		return b.String()
	}
	b.WriteString("\n")

	for _, s := range Summaries(g, page) {
		name := s.DisplayName
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "  [%s] %s  %s\n", statusLabel(s), s.GUID, name)
		var details []string
		if s.CreationTime > 0 {
			details = append(details, "Created: "+s.Created().UTC().Format("2006-01-02 15:04:05"))
		}
		if s.Severity != "" {
			details = append(details, "Severity: "+s.Severity)
		}
		if s.Priority != "" {
			details = append(details, "Priority: "+s.Priority)
		}
		if len(s.DetectionTypes) > 0 {
			details = append(details, "Detection: "+strings.Join(s.DetectionTypes, ", "))
		}
		if len(details) > 0 {
			fmt.Fprintf(&b, "    %s\n", strings.Join(details, " | "))
		}
	}
	return b.String()
}

func statusLabel(s MalopSummary) string {
	if s.InvestigationStatus != "" {
		return s.InvestigationStatus
	}
	if s.Status != "" {
		return s.Status
	}
	return "?"
}
