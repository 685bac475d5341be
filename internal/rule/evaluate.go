package rule

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/roach88/convoprobe/internal/turn"
)

// Result is the outcome of one rule against one turn.
type Result struct {
	// Rule is nil for synthetic results.
	Rule      Rule   `json:"-"`
	Type      string `json:"type"`
	Critical  bool   `json:"critical"`
	TurnIndex int    `json:"turnIndex"`
	Passed    bool   `json:"passed"`
	Detail    string `json:"detail"`
}

// Evaluate runs r against t. It never panics on catalog input; an
// unrecognized rule or a broken expression produces a failed Result.
func Evaluate(r Rule, t turn.Result) Result {
	if r == nil {
		return Result{
			Critical:  true,
			TurnIndex: t.TurnIndex,
			Detail:    "Rule is missing",
		}
	}
	o := r.accept(evaluator{turn: t})
	return Result{
		Rule:      r,
		Type:      r.Type(),
		Critical:  r.IsCritical(),
		TurnIndex: t.TurnIndex,
		Passed:    o.passed,
		Detail:    o.detail,
	}
}

// MissingTurn is the critical failure recorded for a validation group whose
// turn index was never executed.
func MissingTurn(turnIndex, executed int) Result {
	return Result{
		Type:      TypeMissingTurn,
		Critical:  true,
		TurnIndex: turnIndex,
		Detail:    fmt.Sprintf("No turn %d (scenario executed %d turns)", turnIndex, executed),
	}
}

// ExecutionFailure is the critical failure recorded when a scenario could
// not be executed at all.
func ExecutionFailure(detail string) Result {
	return Result{
		Type:      TypeExecution,
		Critical:  true,
		TurnIndex: -1,
		Detail:    detail,
	}
}

type evaluator struct {
	turn turn.Result
}

func (e evaluator) notEmpty(NotEmpty) outcome {
	text := e.turn.ResponseText
	if text == "" {
		return outcome{detail: "Response is empty"}
	}
	if marker, ok := failureMarker(text); ok {
		return outcome{detail: fmt.Sprintf("Response contains failure marker %q", marker)}
	}
	return outcome{passed: true, detail: fmt.Sprintf("Response has %d characters", utf8.RuneCountInString(text))}
}

func (e evaluator) containsAny(r ContainsAny) outcome {
	if len(r.Values) == 0 {
		return outcome{detail: "contains_any has no values"}
	}
	found := matching(e.turn.ResponseText, r.Values)
	if len(found) == 0 {
		return outcome{detail: fmt.Sprintf("None of [%s] found", strings.Join(r.Values, ", "))}
	}
	return outcome{passed: true, detail: "Found: " + strings.Join(found, ", ")}
}

func (e evaluator) notContains(r NotContains) outcome {
	found := matching(e.turn.ResponseText, r.Values)
	if len(found) > 0 {
		return outcome{detail: "Found forbidden: " + strings.Join(found, ", ")}
	}
	return outcome{passed: true, detail: "No forbidden values found"}
}

func (e evaluator) responseTime(r ResponseTime) outcome {
	limit := r.Limit()
	actual := e.turn.ResponseLatencyMs
	return outcome{
		passed: actual <= limit,
		detail: fmt.Sprintf("%dms (max %dms)", actual, limit),
	}
}

func (e evaluator) language(r Language) outcome {
	return exact("language", r.Expected, e.turn.DetectedLanguage)
}

func (e evaluator) messageType(r MessageType) outcome {
	return exact("message type", r.Expected, e.turn.MessageType)
}

func (e evaluator) expression(r Expression) outcome {
	ok, err := evalExpression(r.Expr, e.turn)
	if err != nil {
		return outcome{detail: fmt.Sprintf("Expression error: %v", err)}
	}
	if !ok {
		return outcome{detail: "Expression is false: " + r.Expr}
	}
	return outcome{passed: true, detail: "Expression is true: " + r.Expr}
}

func (e evaluator) unknown(r Unknown) outcome {
	return outcome{detail: "Unknown rule type: " + r.Name}
}

func exact(what, expected, actual string) outcome {
	if expected == actual {
		return outcome{passed: true, detail: fmt.Sprintf("%s is %q", what, actual)}
	}
	return outcome{detail: fmt.Sprintf("Expected %s %q, got %q", what, expected, actual)}
}
