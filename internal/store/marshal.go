package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/convoprobe/internal/rule"
	"github.com/roach88/convoprobe/internal/turn"
)

// marshalJSON encodes v as compact JSON TEXT without HTML escaping, so
// assistant responses containing "<" or "&" are stored as written.
func marshalJSON(what string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func marshalTurns(turns []turn.Result) (string, error) {
	if turns == nil {
		turns = []turn.Result{}
	}
	return marshalJSON("turns", turns)
}

func marshalRuleResults(results []rule.Result) (string, error) {
	if results == nil {
		results = []rule.Result{}
	}
	return marshalJSON("rule results", results)
}

func unmarshalTurns(data string) ([]turn.Result, error) {
	var turns []turn.Result
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return nil, fmt.Errorf("unmarshal turns: %w", err)
	}
	return turns, nil
}

// unmarshalRuleResults decodes stored rule results. The Rule field is not
// persisted, so decoded results carry only type, criticality and outcome.
func unmarshalRuleResults(data string) ([]rule.Result, error) {
	var results []rule.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		return nil, fmt.Errorf("unmarshal rule results: %w", err)
	}
	return results, nil
}
