package harness

import (
	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/rule"
	"github.com/roach88/convoprobe/internal/turn"
)

// Status is the verdict for one scenario.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// ScenarioResult is the outcome of one scenario.
//
// It is created when a worker claims the scenario and is immutable once the
// worker has written it into the run's results.
type ScenarioResult struct {
	Scenario    catalog.Scenario `json:"scenario"`
	Status      Status           `json:"status"`
	Mode        turn.Mode        `json:"mode,omitempty"`
	Turns       []turn.Result    `json:"turns"`
	ElapsedMs   int64            `json:"elapsedMs"`
	RuleResults []rule.Result    `json:"ruleResults"`
}

// Failures returns the rule results that did not pass.
func (r *ScenarioResult) Failures() []rule.Result {
	var out []rule.Result
	for _, rr := range r.RuleResults {
		if !rr.Passed {
			out = append(out, rr)
		}
	}
	return out
}

// Progress is reported after every completed scenario. The counts are
// running tallies for the scenarios finished so far.
type Progress struct {
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Current    string `json:"current"` // name of the scenario that just finished
	ScenarioID string `json:"scenario_id"`
	PassCount  int    `json:"pass_count"`
	WarnCount  int    `json:"warn_count"`
	FailCount  int    `json:"fail_count"`
}

// StatusOf derives a scenario status from its rule results.
func StatusOf(results []rule.Result) Status {
	status := StatusPass
	for _, r := range results {
		if r.Passed {
			continue
		}
		if r.Critical {
			return StatusFail
		}
		status = StatusWarn
	}
	return status
}
