package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a metadata filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Matches evaluates the expression against a document's metadata.
// All must conditions hold, at least one should condition holds (if any), no must_not holds.
func (e Expression) Matches(metadata map[string]string, numerics map[string]float64) bool {
	for _, c := range e.must {
		if !c.Matches(metadata, numerics) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.Matches(metadata, numerics) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.Matches(metadata, numerics) {
			return true
		}
	}
	return false
}

// Condition is a single filter clause: either a metadata match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact metadata match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Matches reports whether the condition holds. Match is case-insensitive;
// a range on a key without a numeric value never holds.
func (c Condition) Matches(metadata map[string]string, numerics map[string]float64) bool {
	if c.rangeExpr != nil {
		v, ok := numerics[c.key]
		return ok && c.rangeExpr.Contains(v)
	}
	v, ok := metadata[c.key]
	return ok && strings.EqualFold(strings.TrimSpace(v), c.match)
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies within every set boundary.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}

var operators = []string{">=", "<=", "!=", ">", "<", "="}

// Parse builds an expression from compact clauses such as "year>=2020" or "venue=NeurIPS".
// "!=" clauses land in must_not, everything else in must.
func Parse(clauses []string) (Expression, error) {
	var must, mustNot []Condition
	for _, raw := range clauses {
		clause := strings.TrimSpace(raw)
		if clause == "" {
			continue
		}
		op, idx := "", -1
		for _, candidate := range operators {
			if i := strings.Index(clause, candidate); i > 0 {
				op, idx = candidate, i
				break
			}
		}
		if idx < 0 {
			return Expression{}, fmt.Errorf("filter %q: missing operator", clause)
		}
		key := strings.TrimSpace(clause[:idx])
		value := strings.TrimSpace(clause[idx+len(op):])

		switch op {
		case "=", "!=":
			c, err := NewMatch(key, value)
			if err != nil {
				return Expression{}, fmt.Errorf("filter %q: %w", clause, err)
			}
			if op == "=" {
				must = append(must, c)
			} else {
				mustNot = append(mustNot, c)
			}
		default:
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Expression{}, fmt.Errorf("filter %q: value is not a number", clause)
			}
			var r Range
			switch op {
			case ">":
				r, err = NewRangeFilter(&n, nil, nil, nil)
			case ">=":
				r, err = NewRangeFilter(nil, &n, nil, nil)
			case "<":
				r, err = NewRangeFilter(nil, nil, &n, nil)
			case "<=":
				r, err = NewRangeFilter(nil, nil, nil, &n)
			}
			if err != nil {
				return Expression{}, fmt.Errorf("filter %q: %w", clause, err)
			}
			c, err := NewRange(key, r)
			if err != nil {
				return Expression{}, fmt.Errorf("filter %q: %w", clause, err)
			}
			must = append(must, c)
		}
	}
	return NewExpression(must, nil, mustNot)
}
