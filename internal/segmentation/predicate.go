package segmentation

import "time"

// Predicate is the typed AST a rule payload compiles to. Exactly one of the
// tagged variants below implements it. Interpreters (the SQL translator, the
// in-memory evaluator) switch over the variants; the compiler never knows
// which store the predicate will run against.
type Predicate interface {
	pred()
}

// ValueKind tags the coerced type of a comparison value.
type ValueKind int

const (
	KindNumber ValueKind = iota
	KindTime
	KindString
)

// Comparison applies one operator to one customer field. The value is
// coerced at compile time: numeric fields carry Number, last-active
// thresholds carry Time, everything else carries Str.
type Comparison struct {
	Field  string
	Op     Op
	Kind   ValueKind
	Number float64
	Time   time.Time
	Str    string
}

// And matches when every child predicate matches.
type And struct {
	Preds []Predicate
}

// Or matches when any child predicate matches.
type Or struct {
	Preds []Predicate
}

// MatchAll is the open filter: empty or missing rule groups compile to it.
type MatchAll struct{}

// MatchNone is the fail-closed result of an unrecognized operator, unknown
// field, or unparseable numeric value. Reason is for logs only.
type MatchNone struct {
	Reason string
}

func (Comparison) pred() {}
func (And) pred()        {}
func (Or) pred()         {}
func (MatchAll) pred()   {}
func (MatchNone) pred()  {}
