package harness

import (
	"context"
	"time"
)

// RunSummary describes one run.
//
// Results is index-aligned with the scenarios passed to Run. Entries are nil
// only for scenarios that were never claimed because the run was cancelled.
type RunSummary struct {
	ID             string            `json:"id"`
	Selection      string            `json:"selection,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Results        []*ScenarioResult `json:"results"`
	Total          int               `json:"total"`
	Completed      int               `json:"completed"`
	PassCount      int               `json:"passCount"`
	WarnCount      int               `json:"warnCount"`
	FailCount      int               `json:"failCount"`
	TotalElapsedMs int64             `json:"totalElapsedMs"`
	Cancelled      bool              `json:"cancelled"`
}

// RunRecorder persists finished runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, s *RunSummary) error
}

func summarize(results []*ScenarioResult, start, end time.Time) *RunSummary {
	s := &RunSummary{
		Timestamp:      start.UTC(),
		Results:        results,
		Total:          len(results),
		TotalElapsedMs: end.Sub(start).Milliseconds(),
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Completed++
		switch r.Status {
		case StatusPass:
			s.PassCount++
		case StatusWarn:
			s.WarnCount++
		default:
			s.FailCount++
		}
	}
	s.Cancelled = s.Completed < s.Total
	return s
}

// Failed reports whether any scenario failed.
func (s *RunSummary) Failed() bool {
	return s.FailCount > 0
}

// NotRun returns how many scenarios were skipped by cancellation.
func (s *RunSummary) NotRun() int {
	return s.Total - s.Completed
}
