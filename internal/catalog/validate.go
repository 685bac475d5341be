package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/roach88/convoprobe/internal/rule"
)

// ValidationError describes one catalog problem.
type ValidationError struct {
	// Scenario is the offending scenario id, empty for catalog-level problems.
	Scenario string `json:"scenario,omitempty"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

func (e *ValidationError) Error() string {
	switch {
	case e.Scenario != "" && e.Field != "":
		return fmt.Sprintf("scenario %q: %s: %s", e.Scenario, e.Field, e.Message)
	case e.Scenario != "":
		return fmt.Sprintf("scenario %q: %s", e.Scenario, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	default:
		return e.Message
	}
}

// ValidateFile runs the schema check and, if the document has the right
// shape, the semantic checks. The returned error is reserved for I/O and
// parse failures; catalog problems are returned as the slice.
func ValidateFile(path string) ([]ValidationError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	problems, err := CheckSchema(data)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		return problems, nil
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return c.Validate(), nil
}

// Validate performs the semantic checks the schema cannot express:
// unique ids, non-empty message lists, turn indices in range, known rule
// types with their required fields, compilable expressions, and intents
// that refer to real scenarios.
func (c *Catalog) Validate() []ValidationError {
	var problems []ValidationError
	add := func(scenario, field, format string, args ...any) {
		problems = append(problems, ValidationError{
			Scenario: scenario,
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	seen := make(map[string]int, len(c.Scenarios))
	for i, s := range c.Scenarios {
		if s.ID == "" {
			add("", fmt.Sprintf("scenarios.%d.id", i), "id is required")
			continue
		}
		if first, dup := seen[s.ID]; dup {
			add(s.ID, "id", "duplicate id (first defined at scenarios.%d)", first)
			continue
		}
		seen[s.ID] = i

		if s.Category == "" {
			add(s.ID, "category", "category is required")
		}
		if len(s.Messages) == 0 {
			add(s.ID, "messages", "at least one message is required")
		}
		for j, v := range s.Validate {
			field := fmt.Sprintf("validate.%d", j)
			if v.Turn < 0 || v.Turn >= len(s.Messages) {
				add(s.ID, field+".turn", "turn %d out of range (scenario has %d messages)", v.Turn, len(s.Messages))
			}
			for k, r := range v.Rules {
				if msg := checkRule(r); msg != "" {
					add(s.ID, fmt.Sprintf("%s.rules.%d", field, k), "%s", msg)
				}
			}
		}
	}

	ids := make([]string, 0, len(c.Intents))
	for id := range c.Intents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			add("", "intents."+id, "intent mapped for unknown scenario")
		}
	}

	return problems
}

func checkRule(r rule.Rule) string {
	switch v := r.(type) {
	case rule.Unknown:
		return fmt.Sprintf("unknown rule type %q", v.Name)
	case rule.ContainsAny:
		if len(v.Values) == 0 {
			return "contains_any requires values"
		}
	case rule.NotContains:
		if len(v.Values) == 0 {
			return "not_contains requires values"
		}
	case rule.Language:
		if v.Expected == "" {
			return "language requires expected"
		}
	case rule.MessageType:
		if v.Expected == "" {
			return "message_type requires expected"
		}
	case rule.Expression:
		if err := rule.CompileExpression(v.Expr); err != nil {
			return fmt.Sprintf("expression does not compile: %v", err)
		}
	}
	return ""
}
