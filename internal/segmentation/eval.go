package segmentation

import (
	"github.com/ignite/crm-engine/internal/domain"
)

// Eval applies a predicate to a customer in memory. It mirrors the SQL
// translator's semantics exactly, including NULL handling: a comparison
// against a nil last_active_at is false for every operator, matching
// SQL's NULL comparison result.
func Eval(p Predicate, c *domain.Customer) bool {
	switch v := p.(type) {
	case MatchAll:
		return true
	case MatchNone:
		return false
	case Comparison:
		return evalComparison(v, c)
	case And:
		for _, child := range v.Preds {
			if !Eval(child, c) {
				return false
			}
		}
		return true
	case Or:
		for _, child := range v.Preds {
			if Eval(child, c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalComparison(cmp Comparison, c *domain.Customer) bool {
	switch cmp.Kind {
	case KindNumber:
		var actual float64
		switch cmp.Field {
		case FieldTotalSpend:
			actual = c.TotalSpend
		case FieldVisitsCount:
			actual = float64(c.VisitsCount)
		default:
			return false
		}
		return compareFloat(actual, cmp.Op, cmp.Number)

	case KindTime:
		if cmp.Field != FieldLastActiveAt || c.LastActiveAt == nil {
			return false
		}
		actual := *c.LastActiveAt
		switch cmp.Op {
		case OpGt:
			return actual.After(cmp.Time)
		case OpLt:
			return actual.Before(cmp.Time)
		case OpGte:
			return !actual.Before(cmp.Time)
		case OpLte:
			return !actual.After(cmp.Time)
		case OpEq:
			return actual.Equal(cmp.Time)
		case OpNe:
			return !actual.Equal(cmp.Time)
		}
		return false

	default:
		var actual string
		switch cmp.Field {
		case FieldName:
			actual = c.Name
		case FieldEmail:
			actual = c.Email
		default:
			return false
		}
		return compareString(actual, cmp.Op, cmp.Str)
	}
}

func compareFloat(a float64, op Op, b float64) bool {
	switch op {
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	}
	return false
}

func compareString(a string, op Op, b string) bool {
	switch op {
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	}
	return false
}
