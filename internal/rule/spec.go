package rule

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Spec is the flat catalog representation of a rule.
//
//	- type: contains_any
//	  values: [Hello, Welcome]
//	  critical: true
type Spec struct {
	Type     string   `yaml:"type" json:"type"`
	Critical bool     `yaml:"critical,omitempty" json:"critical,omitempty"`
	Values   []string `yaml:"values,omitempty" json:"values,omitempty"`
	Max      int64    `yaml:"max,omitempty" json:"max,omitempty"`
	Expected string   `yaml:"expected,omitempty" json:"expected,omitempty"`
	Expr     string   `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// Rule converts s into its variant. Unrecognized types become Unknown.
func (s Spec) Rule() Rule {
	switch s.Type {
	case TypeNotEmpty:
		return NotEmpty{Critical: s.Critical}
	case TypeContainsAny:
		return ContainsAny{Critical: s.Critical, Values: s.Values}
	case TypeNotContains:
		return NotContains{Critical: s.Critical, Values: s.Values}
	case TypeResponseTime:
		return ResponseTime{Critical: s.Critical, MaxMs: s.Max}
	case TypeLanguage:
		return Language{Critical: s.Critical, Expected: s.Expected}
	case TypeMessageType:
		return MessageType{Critical: s.Critical, Expected: s.Expected}
	case TypeExpression:
		return Expression{Critical: s.Critical, Expr: s.Expr}
	default:
		return Unknown{Critical: s.Critical, Name: s.Type}
	}
}

// SpecOf converts a rule back into its catalog form.
func SpecOf(r Rule) Spec {
	switch v := r.(type) {
	case NotEmpty:
		return Spec{Type: TypeNotEmpty, Critical: v.Critical}
	case ContainsAny:
		return Spec{Type: TypeContainsAny, Critical: v.Critical, Values: v.Values}
	case NotContains:
		return Spec{Type: TypeNotContains, Critical: v.Critical, Values: v.Values}
	case ResponseTime:
		return Spec{Type: TypeResponseTime, Critical: v.Critical, Max: v.MaxMs}
	case Language:
		return Spec{Type: TypeLanguage, Critical: v.Critical, Expected: v.Expected}
	case MessageType:
		return Spec{Type: TypeMessageType, Critical: v.Critical, Expected: v.Expected}
	case Expression:
		return Spec{Type: TypeExpression, Critical: v.Critical, Expr: v.Expr}
	case Unknown:
		return Spec{Type: v.Name, Critical: v.Critical}
	default:
		return Spec{}
	}
}

// Known reports whether typ is a recognized catalog rule type.
func Known(typ string) bool {
	_, unknown := Spec{Type: typ}.Rule().(Unknown)
	return !unknown
}

// List is a sequence of rules that decodes from and encodes to catalog specs.
type List []Rule

// UnmarshalYAML decodes a YAML sequence of rule specs.
func (l *List) UnmarshalYAML(value *yaml.Node) error {
	var specs []Spec
	if err := value.Decode(&specs); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	*l = fromSpecs(specs)
	return nil
}

// MarshalYAML encodes the rules as specs.
func (l List) MarshalYAML() (any, error) {
	return l.specs(), nil
}

// MarshalJSON encodes the rules as specs.
func (l List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.specs())
}

// UnmarshalJSON decodes a JSON array of rule specs.
func (l *List) UnmarshalJSON(data []byte) error {
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("decode rules: %w", err)
	}
	*l = fromSpecs(specs)
	return nil
}

func fromSpecs(specs []Spec) List {
	out := make(List, len(specs))
	for i, s := range specs {
		out[i] = s.Rule()
	}
	return out
}

func (l List) specs() []Spec {
	specs := make([]Spec, len(l))
	for i, r := range l {
		specs[i] = SpecOf(r)
	}
	return specs
}
