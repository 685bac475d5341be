package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/rule"
	"github.com/roach88/convoprobe/internal/turn"
)

// runScenario executes one scenario end to end. It never panics and never
// returns a nil result.
func (h *Harness) runScenario(ctx context.Context, s catalog.Scenario, runStart time.Time) (res *ScenarioResult) {
	start := h.now()
	res = &ScenarioResult{
		Scenario:    s,
		Turns:       []turn.Result{},
		RuleResults: []rule.Result{},
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("scenario panicked", "scenario", s.ID, "panic", r)
			res.RuleResults = append(res.RuleResults, rule.ExecutionFailure(fmt.Sprintf("panic: %v", r)))
			res.Status = StatusFail
		}
		res.ElapsedMs = h.now().Sub(start).Milliseconds()
	}()

	if len(s.Messages) == 0 {
		res.RuleResults = append(res.RuleResults, rule.ExecutionFailure("scenario has no messages"))
		res.Status = StatusFail
		return res
	}

	res.Mode = h.selector.Mode(s)
	sess := newSession(h.exec, res.Mode, SessionID(s.ID, runStart))
	aborted := false
	for i, msg := range s.Messages {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		t := sess.send(ctx, i, msg)
		if t.Failed() {
			h.logger.Debug("turn failed", "scenario", s.ID, "turn", i, "response", t.ResponseText)
			aborted = ctx.Err() != nil
		}
		res.Turns = append(res.Turns, t)
	}

	res.RuleResults = Validate(s, res.Turns)
	if aborted {
		res.RuleResults = append(res.RuleResults, rule.ExecutionFailure(
			fmt.Sprintf("run aborted after %d of %d messages", len(res.Turns), len(s.Messages))))
	}
	res.Status = StatusOf(res.RuleResults)
	return res
}

// Validate evaluates every validation group of s against the executed turns,
// in catalog order. A group whose turn was not executed yields a single
// critical missing_turn result.
func Validate(s catalog.Scenario, turns []turn.Result) []rule.Result {
	out := []rule.Result{}
	for _, v := range s.Validate {
		if v.Turn < 0 || v.Turn >= len(turns) {
			out = append(out, rule.MissingTurn(v.Turn, len(turns)))
			continue
		}
		for _, r := range v.Rules {
			out = append(out, rule.Evaluate(r, turns[v.Turn]))
		}
	}
	return out
}
