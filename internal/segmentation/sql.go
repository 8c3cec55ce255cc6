package segmentation

import (
	"fmt"
	"strings"
)

// SQLBuilder translates a predicate AST into a PostgreSQL WHERE clause with
// positional arguments. It is one interpreter over the AST; the in-memory
// evaluator in eval.go is another.
type SQLBuilder struct {
	args       []interface{}
	argCounter int
}

// NewSQLBuilder creates a builder with the argument counter starting at $1.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{args: make([]interface{}, 0), argCounter: 1}
}

// nextArg registers a value and returns its placeholder.
func (b *SQLBuilder) nextArg(value interface{}) string {
	b.args = append(b.args, value)
	placeholder := fmt.Sprintf("$%d", b.argCounter)
	b.argCounter++
	return placeholder
}

// Where renders the predicate as a WHERE-clause fragment plus its arguments.
// MatchAll renders as TRUE so callers can always append "WHERE <fragment>".
// Rendering is deterministic: fixed input yields byte-identical SQL.
func (b *SQLBuilder) Where(p Predicate) (string, []interface{}) {
	b.args = make([]interface{}, 0)
	b.argCounter = 1
	return b.render(p), b.args
}

func (b *SQLBuilder) render(p Predicate) string {
	switch v := p.(type) {
	case MatchAll:
		return "TRUE"
	case MatchNone:
		return "FALSE"
	case Comparison:
		return b.renderComparison(v)
	case And:
		return b.renderJoin(v.Preds, " AND ")
	case Or:
		return b.renderJoin(v.Preds, " OR ")
	default:
		return "FALSE"
	}
}

func (b *SQLBuilder) renderJoin(preds []Predicate, sep string) string {
	if len(preds) == 0 {
		return "TRUE"
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		parts = append(parts, b.render(p))
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (b *SQLBuilder) renderComparison(c Comparison) string {
	var arg string
	switch c.Kind {
	case KindNumber:
		arg = b.nextArg(c.Number)
	case KindTime:
		arg = b.nextArg(c.Time)
	default:
		arg = b.nextArg(c.Str)
	}

	op := string(c.Op)
	if c.Op == OpNe {
		op = "<>"
	}
	// Column names come from the compiler's field whitelist, never from
	// user input.
	return fmt.Sprintf("%s %s %s", c.Field, op, arg)
}
