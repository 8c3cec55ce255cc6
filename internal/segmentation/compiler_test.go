package segmentation

import (
	"reflect"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCompileEmptyRulesMatchesEverything(t *testing.T) {
	cases := [][]RuleGroup{
		nil,
		{},
		{{Conditions: nil}},
		{{Conditions: []Condition{}}, {Conditions: nil}},
	}
	for _, groups := range cases {
		p := Compile(groups, testNow)
		if _, ok := p.(MatchAll); !ok {
			t.Fatalf("expected MatchAll for %+v, got %T", groups, p)
		}
	}
}

func TestCompileComposition(t *testing.T) {
	groups := []RuleGroup{
		{Conditions: []Condition{
			{Field: "total_spend", Operator: ">", Value: "1000", Logic: "OR"},
			{Field: "visits_count", Operator: "<=", Value: "3", Logic: "OR"},
		}},
		{Conditions: []Condition{
			{Field: "visits_count", Operator: ">", Value: "10"},
		}},
	}

	p := Compile(groups, testNow)
	or, ok := p.(Or)
	if !ok {
		t.Fatalf("expected Or at top level, got %T", p)
	}
	if len(or.Preds) != 2 {
		t.Fatalf("expected 2 OR branches, got %d", len(or.Preds))
	}

	// The per-condition logic flag ("OR" above) must not change composition:
	// conditions within a group are always AND-ed.
	and, ok := or.Preds[0].(And)
	if !ok {
		t.Fatalf("expected And inside group, got %T", or.Preds[0])
	}
	if len(and.Preds) != 2 {
		t.Fatalf("expected 2 AND-ed conditions, got %d", len(and.Preds))
	}
}

func TestCompileDaysSinceLastActive(t *testing.T) {
	groups := []RuleGroup{
		{Conditions: []Condition{
			{Field: "last_active_at", Operator: "<", Value: "30"},
		}},
	}

	p := Compile(groups, testNow)
	cmp := p.(Or).Preds[0].(And).Preds[0].(Comparison)

	want := testNow.AddDate(0, 0, -30)
	if cmp.Kind != KindTime || !cmp.Time.Equal(want) {
		t.Fatalf("expected threshold %v, got %v (kind=%d)", want, cmp.Time, cmp.Kind)
	}
}

func TestCompileUnrecognizedOperatorMatchesNothing(t *testing.T) {
	groups := []RuleGroup{
		{Conditions: []Condition{
			{Field: "total_spend", Operator: "~", Value: "100"},
		}},
	}
	p := Compile(groups, testNow)
	cond := p.(Or).Preds[0].(And).Preds[0]
	if _, ok := cond.(MatchNone); !ok {
		t.Fatalf("expected MatchNone for unrecognized operator, got %T", cond)
	}
}

func TestCompileUnknownFieldMatchesNothing(t *testing.T) {
	groups := []RuleGroup{
		{Conditions: []Condition{
			{Field: "shoe_size", Operator: ">", Value: "42"},
		}},
	}
	p := Compile(groups, testNow)
	cond := p.(Or).Preds[0].(And).Preds[0]
	if _, ok := cond.(MatchNone); !ok {
		t.Fatalf("expected MatchNone for unknown field, got %T", cond)
	}
}

func TestCompileNonNumericValueMatchesNothing(t *testing.T) {
	groups := []RuleGroup{
		{Conditions: []Condition{
			{Field: "total_spend", Operator: ">", Value: "lots"},
		}},
	}
	p := Compile(groups, testNow)
	cond := p.(Or).Preds[0].(And).Preds[0]
	if _, ok := cond.(MatchNone); !ok {
		t.Fatalf("expected MatchNone for non-numeric value, got %T", cond)
	}
}

func TestCompileEqualsSynonyms(t *testing.T) {
	for _, op := range []string{"=", "=="} {
		groups := []RuleGroup{
			{Conditions: []Condition{{Field: "visits_count", Operator: op, Value: "5"}}},
		}
		cmp := Compile(groups, testNow).(Or).Preds[0].(And).Preds[0].(Comparison)
		if cmp.Op != OpEq {
			t.Fatalf("operator %q: expected OpEq, got %q", op, cmp.Op)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	groups := []RuleGroup{
		{Conditions: []Condition{
			{Field: "total_spend", Operator: ">", Value: "1000"},
			{Field: "last_active_at", Operator: ">=", Value: "7"},
		}},
		{Conditions: []Condition{
			{Field: "email", Operator: "!=", Value: "x@example.com"},
		}},
	}

	sql1, args1 := NewSQLBuilder().Where(Compile(groups, testNow))
	sql2, args2 := NewSQLBuilder().Where(Compile(groups, testNow))

	if sql1 != sql2 {
		t.Fatalf("non-deterministic SQL:\n%s\n%s", sql1, sql2)
	}
	if !reflect.DeepEqual(args1, args2) {
		t.Fatalf("non-deterministic args: %v vs %v", args1, args2)
	}
}
