package evaluation

import (
	"fmt"
	"strings"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// Render formats a report as the human-readable document handed to
// operators. The JSON form of the report is the machine interface; this is
// the one people read.
func Render(r *domain.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Evaluation Report %s\n", r.ID)
	fmt.Fprintf(&b, "Generated %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Transcripts analyzed: %d, skipped: %d\n\n", r.Analyzed, len(r.Skipped))

	b.WriteString("KPIs\n")
	var lastCategory domain.MetricCategory
	for _, m := range r.Metrics {
		if m.Category != lastCategory {
			fmt.Fprintf(&b, "  [%s]\n", m.Category)
			lastCategory = m.Category
		}
		fmt.Fprintf(&b, "    %-32s %.3f\n", m.Name, m.Value)
	}

	if len(r.Failures) > 0 {
		b.WriteString("\nDetected failures\n")
		for _, f := range r.Failures {
			loc := f.SessionID
			if f.TurnIndex != nil {
				loc = fmt.Sprintf("%s turn %d", f.SessionID, *f.TurnIndex)
			}
			fmt.Fprintf(&b, "  [%s] %s (%s): %s\n", f.Severity, f.Pattern, loc, f.Evidence)
		}
	}

	if len(r.Suggestions) > 0 {
		b.WriteString("\nSuggestions\n")
		for i, s := range r.Suggestions {
			fmt.Fprintf(&b, "  %d. [%s] %s (seen %dx)\n", i+1, s.Priority, s.Pattern, s.Occurrences)
			fmt.Fprintf(&b, "     target: %s\n", s.Target)
			fmt.Fprintf(&b, "     change: %s\n", s.Change)
			fmt.Fprintf(&b, "     impact: %s\n", s.ExpectedImpact)
		}
	}

	if len(r.Skipped) > 0 {
		b.WriteString("\nSkipped transcripts\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "  %s: %s\n", s.SessionID, s.Reason)
		}
	}

	return b.String()
}
