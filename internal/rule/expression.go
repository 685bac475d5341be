package rule

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/roach88/convoprobe/internal/turn"
)

// Expressions see a single variable, turn, holding these keys:
//
//	response, intent, source, action, language, message_type, model,
//	matched_keyword, workflow_id (string)
//	confidence (double)
//	latency_ms, index (int)
//	knowledge_files (list of string)
var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error

	// programs caches compiled expressions by source text.
	programs sync.Map
)

type compiled struct {
	prg cel.Program
	err error
}

func celEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("turn", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return env, envErr
}

// CompileExpression checks that expr parses and type-checks.
func CompileExpression(expr string) error {
	_, err := program(expr)
	return err
}

func program(expr string) (cel.Program, error) {
	if v, ok := programs.Load(expr); ok {
		c := v.(compiled)
		return c.prg, c.err
	}

	c := compile(expr)
	programs.Store(expr, c)
	return c.prg, c.err
}

func compile(expr string) compiled {
	if expr == "" {
		return compiled{err: fmt.Errorf("empty expression")}
	}
	e, err := celEnv()
	if err != nil {
		return compiled{err: fmt.Errorf("cel environment: %w", err)}
	}
	ast, iss := e.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return compiled{err: iss.Err()}
	}
	prg, err := e.Program(ast)
	if err != nil {
		return compiled{err: err}
	}
	return compiled{prg: prg}
}

func evalExpression(expr string, t turn.Result) (bool, error) {
	prg, err := program(expr)
	if err != nil {
		return false, err
	}

	files := t.KnowledgeFilesUsed
	if files == nil {
		files = []string{}
	}
	out, _, err := prg.Eval(map[string]any{
		"turn": map[string]any{
			"index":           int64(t.TurnIndex),
			"response":        t.ResponseText,
			"intent":          t.Intent,
			"source":          string(t.DetectionSource),
			"action":          t.RoutedAction,
			"confidence":      t.Confidence,
			"language":        t.DetectedLanguage,
			"message_type":    t.MessageType,
			"model":           t.Model,
			"knowledge_files": files,
			"latency_ms":      t.ResponseLatencyMs,
			"matched_keyword": t.MatchedKeyword,
			"workflow_id":     t.WorkflowID,
		},
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %s, want bool", out.Type().TypeName())
	}
	return b, nil
}
