package segmentation

import (
	"fmt"
	"strconv"
	"time"
)

// Compile turns a rule payload into a predicate. now is the evaluation clock
// used to resolve "days since last active" conditions into absolute
// thresholds; for fixed now and fixed input the output is deterministic.
//
// Composition: groups OR, in-group conditions AND. Groups without conditions
// are skipped; if nothing remains the result is MatchAll (open filter), which
// audience previews rely on.
func Compile(groups []RuleGroup, now time.Time) Predicate {
	var groupPreds []Predicate

	for _, g := range groups {
		if len(g.Conditions) == 0 {
			continue
		}
		conds := make([]Predicate, 0, len(g.Conditions))
		for _, c := range g.Conditions {
			conds = append(conds, compileCondition(c, now))
		}
		groupPreds = append(groupPreds, And{Preds: conds})
	}

	if len(groupPreds) == 0 {
		return MatchAll{}
	}
	return Or{Preds: groupPreds}
}

// compileCondition coerces one condition's value by field and resolves its
// operator. Any unrecognized piece yields MatchNone rather than an error:
// a bad condition silently matches nothing instead of breaking the whole
// segment.
func compileCondition(c Condition, now time.Time) Predicate {
	op, ok := parseOp(c.Operator)
	if !ok {
		return MatchNone{Reason: fmt.Sprintf("unrecognized operator %q", c.Operator)}
	}

	switch c.Field {
	case FieldTotalSpend, FieldVisitsCount:
		n, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return MatchNone{Reason: fmt.Sprintf("non-numeric value %q for %s", c.Value, c.Field)}
		}
		return Comparison{Field: c.Field, Op: op, Kind: KindNumber, Number: n}

	case FieldLastActiveAt:
		// Value is "days ago": threshold = now − N days, then the operator
		// applies to the customer's last-active timestamp.
		days, err := strconv.Atoi(c.Value)
		if err != nil {
			return MatchNone{Reason: fmt.Sprintf("non-numeric day count %q for %s", c.Value, c.Field)}
		}
		return Comparison{Field: c.Field, Op: op, Kind: KindTime, Time: now.AddDate(0, 0, -days)}

	case FieldName, FieldEmail:
		return Comparison{Field: c.Field, Op: op, Kind: KindString, Str: c.Value}

	default:
		return MatchNone{Reason: fmt.Sprintf("unknown field %q", c.Field)}
	}
}
