// Package segmentation compiles boolean rule trees into store-agnostic
// predicates over customers.
//
// A rule payload is an ordered list of groups, each holding an ordered list
// of conditions. Groups combine by OR; conditions within a group combine by
// AND. The per-condition Logic flag is persisted and round-tripped for the
// API but never alters composition.
//
// Compilation captures the evaluation clock: a "days since last active"
// condition is turned into an absolute timestamp threshold at compile time,
// so two compilations of the same rules at different instants can match
// different customers. Callers that need reproducible output must pass a
// fixed now.
package segmentation

// Condition is one field/operator/value triple from the rule payload.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Logic    string `json:"logic,omitempty"`
}

// RuleGroup is an ordered set of conditions combined by AND.
type RuleGroup struct {
	Conditions []Condition `json:"conditions"`
}

// Fields a condition may reference. Anything else compiles to a predicate
// that matches nothing (fail closed, same policy as unknown operators).
const (
	FieldTotalSpend   = "total_spend"
	FieldVisitsCount  = "visits_count"
	FieldLastActiveAt = "last_active_at"
	FieldName         = "name"
	FieldEmail        = "email"
)

// Op is a comparison operator in the predicate AST.
type Op string

const (
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
	OpEq  Op = "="
	OpNe  Op = "!="
)

// parseOp maps a rule operator string to an Op. "=" and "==" are synonyms.
func parseOp(s string) (Op, bool) {
	switch s {
	case ">":
		return OpGt, true
	case "<":
		return OpLt, true
	case ">=":
		return OpGte, true
	case "<=":
		return OpLte, true
	case "=", "==":
		return OpEq, true
	case "!=":
		return OpNe, true
	default:
		return "", false
	}
}
