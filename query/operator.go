package query

import "fmt"

// =============================================================================
// OPERATOR TAXONOMY
// =============================================================================

// Operator is a comparison usable in a filter clause.
type Operator int

const (
	Equal Operator = iota + 1
	NotEqual
	GreaterThan
	LessThan
	GreaterOrEqual
	LessOrEqual
	Like
	ILike
	Between
	In
)

var operatorSymbols = map[Operator]string{
	Equal:          "=",
	NotEqual:       "<>",
	GreaterThan:    ">",
	LessThan:       "<",
	GreaterOrEqual: ">=",
	LessOrEqual:    "<=",
	Like:           "LIKE",
	ILike:          "ILIKE",
	Between:        "BETWEEN",
	In:             "IN",
}

var operatorNames = map[Operator]string{
	Equal:          "EQUAL",
	NotEqual:       "NOT_EQUAL",
	GreaterThan:    "GREATER_THAN",
	LessThan:       "LESS_THAN",
	GreaterOrEqual: "GREATER_OR_EQUAL",
	LessOrEqual:    "LESS_OR_EQUAL",
	Like:           "LIKE",
	ILike:          "ILIKE",
	Between:        "BETWEEN",
	In:             "IN",
}

// Symbol returns the canonical SQL rendering of the operator.
func (o Operator) Symbol() string {
	return operatorSymbols[o]
}

func (o Operator) String() string {
	if n, ok := operatorNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Valid reports whether o is one of the declared operators.
func (o Operator) Valid() bool {
	_, ok := operatorSymbols[o]
	return ok
}

// IsPattern reports whether the operator takes a text pattern operand.
func (o Operator) IsPattern() bool {
	return o == Like || o == ILike
}

// checkArity validates the operand count for o.
// BETWEEN needs exactly two, IN at least one, everything else exactly one.
func (o Operator) checkArity(n int) error {
	switch o {
	case Between:
		if n != 2 {
			return fmt.Errorf("%s requires exactly 2 operands, got %d", o, n)
		}
	case In:
		if n == 0 {
			return fmt.Errorf("%s requires at least 1 operand", o)
		}
	default:
		if n != 1 {
			return fmt.Errorf("%s requires exactly 1 operand, got %d", o, n)
		}
	}
	return nil
}

// ParseOperator maps an operator name ("EQUAL", "BETWEEN") or symbol ("=", "<>")
// back to its Operator.
func ParseOperator(s string) (Operator, error) {
	for op, name := range operatorNames {
		if name == s {
			return op, nil
		}
	}
	for op, sym := range operatorSymbols {
		if sym == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}
