// Package rule implements the validation DSL scenarios use to check an
// assistant turn.
//
// # Rule Types
//
//   - not_empty: response is non-empty and carries no failure marker
//   - contains_any: at least one of values appears (case-insensitive)
//   - not_contains: none of values appears (case-insensitive)
//   - response_time: latency is at most max milliseconds (default 10000)
//   - language: detected language equals expected
//   - message_type: classified message type equals expected
//   - expression: a CEL boolean expression over the turn evaluates to true
//
// Any other type decodes to Unknown, which always fails. Silently passing an
// unrecognized rule would hide typos in the catalog.
//
// Rule is a closed set. Each variant implements the unexported accept method
// against visitor, so a new variant that the evaluator does not handle fails
// to compile.
package rule

// Rule type names as written in the catalog.
const (
	TypeNotEmpty     = "not_empty"
	TypeContainsAny  = "contains_any"
	TypeNotContains  = "not_contains"
	TypeResponseTime = "response_time"
	TypeLanguage     = "language"
	TypeMessageType  = "message_type"
	TypeExpression   = "expression"

	// Synthetic result types produced by the harness, never by the catalog.
	TypeMissingTurn = "missing_turn"
	TypeExecution   = "execution"
)

// DefaultMaxLatencyMs is the response_time ceiling when max is unset.
const DefaultMaxLatencyMs int64 = 10000

// Rule is one validation check.
type Rule interface {
	// Type returns the catalog type name.
	Type() string
	// IsCritical reports whether a failure of this rule fails the scenario.
	IsCritical() bool

	accept(v visitor) outcome
}

type outcome struct {
	passed bool
	detail string
}

type visitor interface {
	notEmpty(r NotEmpty) outcome
	containsAny(r ContainsAny) outcome
	notContains(r NotContains) outcome
	responseTime(r ResponseTime) outcome
	language(r Language) outcome
	messageType(r MessageType) outcome
	expression(r Expression) outcome
	unknown(r Unknown) outcome
}

// NotEmpty checks that the assistant actually answered.
type NotEmpty struct {
	Critical bool
}

// ContainsAny checks that at least one value appears in the response.
type ContainsAny struct {
	Critical bool
	Values   []string
}

// NotContains checks that no value appears in the response.
type NotContains struct {
	Critical bool
	Values   []string
}

// ResponseTime checks the turn latency. MaxMs <= 0 means DefaultMaxLatencyMs.
type ResponseTime struct {
	Critical bool
	MaxMs    int64
}

// Language checks the detected language code.
type Language struct {
	Critical bool
	Expected string
}

// MessageType checks the classified message type.
type MessageType struct {
	Critical bool
	Expected string
}

// Expression evaluates a CEL expression against the turn.
type Expression struct {
	Critical bool
	Expr     string
}

// Unknown is a rule whose type the evaluator does not recognize.
type Unknown struct {
	Critical bool
	Name     string
}

func (r NotEmpty) Type() string     { return TypeNotEmpty }
func (r ContainsAny) Type() string  { return TypeContainsAny }
func (r NotContains) Type() string  { return TypeNotContains }
func (r ResponseTime) Type() string { return TypeResponseTime }
func (r Language) Type() string     { return TypeLanguage }
func (r MessageType) Type() string  { return TypeMessageType }
func (r Expression) Type() string   { return TypeExpression }
func (r Unknown) Type() string      { return r.Name }

func (r NotEmpty) IsCritical() bool     { return r.Critical }
func (r ContainsAny) IsCritical() bool  { return r.Critical }
func (r NotContains) IsCritical() bool  { return r.Critical }
func (r ResponseTime) IsCritical() bool { return r.Critical }
func (r Language) IsCritical() bool     { return r.Critical }
func (r MessageType) IsCritical() bool  { return r.Critical }
func (r Expression) IsCritical() bool   { return r.Critical }
func (r Unknown) IsCritical() bool      { return r.Critical }

func (r NotEmpty) accept(v visitor) outcome     { return v.notEmpty(r) }
func (r ContainsAny) accept(v visitor) outcome  { return v.containsAny(r) }
func (r NotContains) accept(v visitor) outcome  { return v.notContains(r) }
func (r ResponseTime) accept(v visitor) outcome { return v.responseTime(r) }
func (r Language) accept(v visitor) outcome     { return v.language(r) }
func (r MessageType) accept(v visitor) outcome  { return v.messageType(r) }
func (r Expression) accept(v visitor) outcome   { return v.expression(r) }
func (r Unknown) accept(v visitor) outcome      { return v.unknown(r) }

// Limit returns the effective latency ceiling in milliseconds.
func (r ResponseTime) Limit() int64 {
	if r.MaxMs <= 0 {
		return DefaultMaxLatencyMs
	}
	return r.MaxMs
}
