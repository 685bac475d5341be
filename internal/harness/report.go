package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/convoprobe/internal/rule"
)

// WriteText renders a human-readable report: one line per executed
// scenario, one indented line per failed rule, and a totals line.
func WriteText(w io.Writer, s *RunSummary) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s", s.ID)
	if s.Selection != "" {
		fmt.Fprintf(&b, " (%s)", s.Selection)
	}
	fmt.Fprintf(&b, " at %s\n\n", s.Timestamp.UTC().Format(time.RFC3339))

	for _, r := range s.Results {
		if r == nil {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s: %s (%s)\n", strings.ToUpper(string(r.Status)), r.Scenario.ID, r.Scenario.Name, scenarioFacts(r))
		for _, f := range r.Failures() {
			fmt.Fprintf(&b, "  - %s\n", describeFailure(f))
		}
	}
	if s.Completed > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%d/%d completed: %d pass, %d warn, %d fail", s.Completed, s.Total, s.PassCount, s.WarnCount, s.FailCount)
	if n := s.NotRun(); n > 0 {
		fmt.Fprintf(&b, ", %d not run", n)
	}
	fmt.Fprintf(&b, " in %dms", s.TotalElapsedMs)
	if s.Cancelled {
		b.WriteString(" (cancelled)")
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON renders the summary as indented JSON.
func WriteJSON(w io.Writer, s *RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func scenarioFacts(r *ScenarioResult) string {
	var parts []string
	if r.Mode != "" {
		parts = append(parts, string(r.Mode))
	}
	switch n := len(r.Turns); n {
	case 1:
		parts = append(parts, "1 turn")
	default:
		parts = append(parts, fmt.Sprintf("%d turns", n))
	}
	parts = append(parts, fmt.Sprintf("%dms", r.ElapsedMs))
	return strings.Join(parts, ", ")
}

func describeFailure(r rule.Result) string {
	var b strings.Builder
	if r.TurnIndex >= 0 {
		fmt.Fprintf(&b, "turn %d ", r.TurnIndex)
	}
	b.WriteString(r.Type)
	if r.Critical {
		b.WriteString(" (critical)")
	}
	fmt.Fprintf(&b, ": %s", r.Detail)
	return b.String()
}
