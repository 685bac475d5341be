package harness

import "sync"

// DefaultHistoryLimit is the number of runs kept when no limit is given.
const DefaultHistoryLimit = 20

// History is a bounded, most-recent-first list of run summaries.
type History struct {
	mu    sync.Mutex
	limit int
	runs  []RunSummary
}

// NewHistory creates a history holding at most limit runs.
// Non-positive limits mean DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Add records s as the most recent run, evicting the oldest beyond the limit.
func (h *History) Add(s *RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()

	runs := append([]RunSummary{*s}, h.runs...)
	if len(runs) > h.limit {
		runs = runs[:h.limit]
	}
	h.runs = runs
}

// Runs returns a copy of the history, most recent first.
func (h *History) Runs() []RunSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]RunSummary(nil), h.runs...)
}

// Len returns the number of runs held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.runs)
}
