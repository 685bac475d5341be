package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/convoprobe/internal/turn"
)

func faqTurn() turn.Result {
	return turn.Result{
		TurnIndex:          0,
		ResponseText:       "Breakfast is served from 7am to 10am.",
		Intent:             "faq_breakfast",
		DetectionSource:    turn.SourceSemantic,
		RoutedAction:       "knowledge_answer",
		Confidence:         0.86,
		DetectedLanguage:   "en",
		MessageType:        "text",
		KnowledgeFilesUsed: []string{"faq.md", "amenities.md"},
		ResponseLatencyMs:  840,
	}
}

func TestExpression(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		passed bool
	}{
		{"confidence and intent", `turn.confidence >= 0.8 && turn.intent == "faq_breakfast"`, true},
		{"knowledge file used", `"faq.md" in turn.knowledge_files`, true},
		{"latency", `turn.latency_ms < 500`, false},
		{"source", `turn.source == "semantic"`, true},
		{"string function", `turn.response.contains("7am")`, true},
		{"false", `turn.action == "static_reply"`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(Expression{Expr: tt.expr}, faqTurn())
			assert.Equal(t, tt.passed, res.Passed, res.Detail)
		})
	}
}

func TestExpression_Errors(t *testing.T) {
	res := Evaluate(Expression{Expr: "turn.("}, faqTurn())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "Expression error")

	res = Evaluate(Expression{Expr: "turn.intent"}, faqTurn())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "want bool")

	res = Evaluate(Expression{Expr: `turn.no_such_key == "x"`}, faqTurn())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, "Expression error")

	res = Evaluate(Expression{}, faqTurn())
	assert.False(t, res.Passed)
}

func TestCompileExpression(t *testing.T) {
	require.NoError(t, CompileExpression(`turn.confidence > 0.5`))
	assert.Error(t, CompileExpression(`turn.confidence >`))
	assert.Error(t, CompileExpression(""))

	// Cached compile errors are returned again.
	assert.Error(t, CompileExpression(`turn.confidence >`))
}
