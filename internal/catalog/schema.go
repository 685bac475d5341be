package catalog

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// CheckSchema validates raw catalog YAML against the embedded CUE schema.
//
// The document is decoded generically and unified with #Catalog, so shape
// errors (wrong types, unknown keys, missing ids) are reported with their
// path even when the typed decoder would stop at the first one.
func CheckSchema(data []byte) ([]ValidationError, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Catalog"))

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}

	err := def.Unify(value).Validate(cue.Concrete(true))
	if err == nil {
		return nil, nil
	}

	var problems []ValidationError
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		format, args := e.Msg()
		problems = append(problems, ValidationError{
			Scenario: scenarioAt(doc, path),
			Field:    strings.Join(path, "."),
			Message:  fmt.Sprintf(format, args...),
		})
	}
	return problems, nil
}

// scenarioAt resolves a "scenarios.<n>...." path to that scenario's id.
func scenarioAt(doc any, path []string) string {
	if len(path) < 2 || path[0] != "scenarios" {
		return ""
	}
	i, err := strconv.Atoi(path[1])
	if err != nil {
		return ""
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return ""
	}
	list, ok := root["scenarios"].([]any)
	if !ok || i < 0 || i >= len(list) {
		return ""
	}
	s, ok := list[i].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := s["id"].(string)
	return id
}
